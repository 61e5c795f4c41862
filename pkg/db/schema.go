package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Dimension: book categories, keyed by slug
CREATE TABLE IF NOT EXISTS dim_categories (
    category_id INTEGER PRIMARY KEY AUTOINCREMENT,
    nom TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Dimension: quote authors, keyed by slug
CREATE TABLE IF NOT EXISTS dim_authors (
    author_id INTEGER PRIMARY KEY AUTOINCREMENT,
    nom TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Dimension: quote tags, keyed by slug
CREATE TABLE IF NOT EXISTS dim_tags (
    tag_id INTEGER PRIMARY KEY AUTOINCREMENT,
    nom TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Dimension: partner librairies, keyed by slug
CREATE TABLE IF NOT EXISTS dim_librairies (
    librairie_id INTEGER PRIMARY KEY AUTOINCREMENT,
    nom TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    ville TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Fact: one row per distinct book, keyed by content hash
CREATE TABLE IF NOT EXISTS fact_books (
    book_id INTEGER PRIMARY KEY AUTOINCREMENT,
    category_id INTEGER NOT NULL,
    titre TEXT NOT NULL,
    prix_gbp REAL NOT NULL,
    prix_eur REAL NOT NULL,
    note INTEGER DEFAULT 0,
    disponibilite INTEGER DEFAULT 0,
    url TEXT,
    image_url TEXT,
    content_key TEXT NOT NULL UNIQUE,
    scraped_at TIMESTAMP,
    batch_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (category_id) REFERENCES dim_categories(category_id)
);

CREATE INDEX IF NOT EXISTS idx_books_category ON fact_books(category_id);
CREATE INDEX IF NOT EXISTS idx_books_batch ON fact_books(batch_id);

-- Fact: one row per distinct quote, keyed by text hash
CREATE TABLE IF NOT EXISTS fact_quotes (
    quote_id INTEGER PRIMARY KEY AUTOINCREMENT,
    author_id INTEGER NOT NULL,
    texte TEXT NOT NULL,
    quote_hash TEXT NOT NULL UNIQUE,
    langue TEXT,
    scraped_at TIMESTAMP,
    batch_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (author_id) REFERENCES dim_authors(author_id)
);

CREATE INDEX IF NOT EXISTS idx_quotes_author ON fact_quotes(author_id);
CREATE INDEX IF NOT EXISTS idx_quotes_batch ON fact_quotes(batch_id);

-- Association: quotes to tags, idempotent link rows
CREATE TABLE IF NOT EXISTS quote_tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    quote_id INTEGER NOT NULL,
    tag_id INTEGER NOT NULL,
    FOREIGN KEY (quote_id) REFERENCES fact_quotes(quote_id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES dim_tags(tag_id) ON DELETE CASCADE,
    UNIQUE(quote_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_quote_tags_quote ON quote_tags(quote_id);
CREATE INDEX IF NOT EXISTS idx_quote_tags_tag ON quote_tags(tag_id);

-- Fact: one row per partner librairie, natural key is the dimension row
CREATE TABLE IF NOT EXISTS fact_librairies (
    fact_id INTEGER PRIMARY KEY AUTOINCREMENT,
    librairie_id INTEGER NOT NULL UNIQUE,
    adresse TEXT,
    code_postal TEXT,
    specialite TEXT,
    date_partenariat TEXT,
    ca_annuel_range TEXT,
    contact_hash TEXT,
    latitude REAL,
    longitude REAL,
    batch_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (librairie_id) REFERENCES dim_librairies(librairie_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_fact_librairies_batch ON fact_librairies(batch_id);

-- Pipeline runs: one row per orchestrator invocation
CREATE TABLE IF NOT EXISTS pipeline_runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT NOT NULL UNIQUE,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    status TEXT NOT NULL,
    error_count INTEGER DEFAULT 0,
    report TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON pipeline_runs(started_at DESC);
`
