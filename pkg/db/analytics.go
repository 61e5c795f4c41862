package db

// Analytics queries over the gold schema. These are the canonical
// post-load validation reads: per-category aggregates, author ranking,
// a price window query, the geolocated partner list, data-quality
// checks, and the global dashboard counters.

// CategoryStat aggregates the books of one category.
type CategoryStat struct {
	Category   string  `json:"category"`
	Books      int     `json:"books"`
	AvgPrice   float64 `json:"avg_price_eur"`
	AvgRating  float64 `json:"avg_rating"`
	TotalStock int     `json:"total_stock"`
}

// AuthorStat counts the quotes attributed to one author.
type AuthorStat struct {
	Author string `json:"author"`
	Quotes int    `json:"quotes"`
}

// PriceRank is one row of the per-category price ranking.
type PriceRank struct {
	Category string  `json:"category"`
	Title    string  `json:"title"`
	PriceEUR float64 `json:"price_eur"`
	Rank     int     `json:"rank"`
}

// GeoLibrairie is a partner librairie with resolved coordinates.
type GeoLibrairie struct {
	Nom        string  `json:"nom"`
	Ville      string  `json:"ville"`
	Specialite string  `json:"specialite"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// QualityCheck is one data-quality control result.
type QualityCheck struct {
	Check string `json:"check"`
	Count int    `json:"count"`
	OK    bool   `json:"ok"`
}

// Dashboard holds the global row counters.
type Dashboard struct {
	Books      int `json:"books"`
	Quotes     int `json:"quotes"`
	Librairies int `json:"librairies"`
	Categories int `json:"categories"`
	Authors    int `json:"authors"`
}

// CategoryStats returns book aggregates per category, most stocked
// categories first. Categories without books are omitted.
func (db *DB) CategoryStats() ([]CategoryStat, error) {
	rows, err := db.Query(`
		SELECT c.nom,
		       COUNT(b.book_id),
		       ROUND(AVG(b.prix_eur), 2),
		       ROUND(AVG(b.note), 2),
		       SUM(b.disponibilite)
		FROM dim_categories c
		JOIN fact_books b ON b.category_id = c.category_id
		GROUP BY c.category_id, c.nom
		ORDER BY COUNT(b.book_id) DESC, c.nom`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CategoryStat
	for rows.Next() {
		var s CategoryStat
		if err := rows.Scan(&s.Category, &s.Books, &s.AvgPrice, &s.AvgRating, &s.TotalStock); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// TopAuthors returns the most-quoted authors, up to limit.
func (db *DB) TopAuthors(limit int) ([]AuthorStat, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := db.Query(`
		SELECT a.nom, COUNT(q.quote_id) AS n
		FROM dim_authors a
		JOIN fact_quotes q ON q.author_id = a.author_id
		GROUP BY a.author_id, a.nom
		ORDER BY n DESC, a.nom
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []AuthorStat
	for rows.Next() {
		var s AuthorStat
		if err := rows.Scan(&s.Author, &s.Quotes); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// PriceRanks returns the topN most expensive books of each category,
// ranked by a window function.
func (db *DB) PriceRanks(topN int) ([]PriceRank, error) {
	if topN <= 0 {
		topN = 3
	}
	rows, err := db.Query(`
		SELECT categorie, titre, prix, rang FROM (
			SELECT c.nom AS categorie,
			       b.titre AS titre,
			       b.prix_eur AS prix,
			       RANK() OVER (PARTITION BY c.category_id ORDER BY b.prix_eur DESC) AS rang
			FROM fact_books b
			JOIN dim_categories c ON b.category_id = c.category_id
		) ranked
		WHERE rang <= ?
		ORDER BY categorie, rang, titre`, topN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranks []PriceRank
	for rows.Next() {
		var r PriceRank
		if err := rows.Scan(&r.Category, &r.Title, &r.PriceEUR, &r.Rank); err != nil {
			return nil, err
		}
		ranks = append(ranks, r)
	}
	return ranks, rows.Err()
}

// GeolocatedLibrairies returns the partner librairies whose address
// resolved to coordinates.
func (db *DB) GeolocatedLibrairies() ([]GeoLibrairie, error) {
	rows, err := db.Query(`
		SELECT d.nom,
		       COALESCE(d.ville, ''),
		       COALESCE(f.specialite, ''),
		       f.latitude,
		       f.longitude
		FROM fact_librairies f
		JOIN dim_librairies d ON d.librairie_id = f.librairie_id
		WHERE f.latitude IS NOT NULL AND f.longitude IS NOT NULL
		ORDER BY d.nom`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libs []GeoLibrairie
	for rows.Next() {
		var l GeoLibrairie
		if err := rows.Scan(&l.Nom, &l.Ville, &l.Specialite, &l.Latitude, &l.Longitude); err != nil {
			return nil, err
		}
		libs = append(libs, l)
	}
	return libs, rows.Err()
}

// QualityReport runs the data-quality controls: orphan facts, quotes
// without a detected language, and librairies that never geocoded. The
// geocode control tolerates a couple of misses before flagging.
func (db *DB) QualityReport() ([]QualityCheck, error) {
	checks := []struct {
		name      string
		query     string
		tolerance int
	}{
		{
			name: "books without category",
			query: `SELECT COUNT(*) FROM fact_books b
				LEFT JOIN dim_categories c ON b.category_id = c.category_id
				WHERE c.category_id IS NULL`,
		},
		{
			name: "quotes without author",
			query: `SELECT COUNT(*) FROM fact_quotes q
				LEFT JOIN dim_authors a ON q.author_id = a.author_id
				WHERE a.author_id IS NULL`,
		},
		{
			name:  "quotes without language",
			query: `SELECT COUNT(*) FROM fact_quotes WHERE langue IS NULL OR langue = ''`,
		},
		{
			name:      "librairies without coordinates",
			query:     `SELECT COUNT(*) FROM fact_librairies WHERE latitude IS NULL`,
			tolerance: 2,
		},
	}

	report := make([]QualityCheck, 0, len(checks))
	for _, c := range checks {
		var n int
		if err := db.QueryRow(c.query).Scan(&n); err != nil {
			return nil, err
		}
		report = append(report, QualityCheck{Check: c.name, Count: n, OK: n <= c.tolerance})
	}
	return report, nil
}

// GlobalDashboard returns the top-level row counters.
func (db *DB) GlobalDashboard() (Dashboard, error) {
	var d Dashboard
	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM fact_books),
			(SELECT COUNT(*) FROM fact_quotes),
			(SELECT COUNT(*) FROM dim_librairies),
			(SELECT COUNT(DISTINCT category_id) FROM fact_books),
			(SELECT COUNT(DISTINCT author_id) FROM fact_quotes)`).
		Scan(&d.Books, &d.Quotes, &d.Librairies, &d.Categories, &d.Authors)
	return d, err
}
