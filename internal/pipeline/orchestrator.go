// Package pipeline orchestrates the staged runs: extract to bronze,
// transform to silver, load to gold, one domain at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/datapulse/ingest/models"
	"github.com/datapulse/ingest/pkg/db"
	"github.com/datapulse/ingest/pkg/fetcher"
	"github.com/datapulse/ingest/pkg/geocode"
	"github.com/datapulse/ingest/pkg/metrics"
	"github.com/datapulse/ingest/pkg/objectstore"
	"github.com/datapulse/ingest/pkg/partners"
	"github.com/datapulse/ingest/pkg/scrape"
	"github.com/datapulse/ingest/pkg/transform"
)

// Domains selects what a run processes.
type Domains struct {
	Books    bool
	Quotes   bool
	Partners bool

	// PartnerFile overrides the configured spreadsheet path.
	PartnerFile string
	// DownloadImages stores book cover images in the object store.
	DownloadImages bool
	// LimitCategories caps how many book categories are scraped, 0 = all.
	LimitCategories int
}

// Runner owns the shared infrastructure for one or more pipeline runs.
type Runner struct {
	cfg     *models.Config
	db      *db.DB
	loader  *db.Loader
	store   *objectstore.Store
	geo     *geocode.Client
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewRunner opens the warehouse database and object store.
func NewRunner(cfg *models.Config, m *metrics.Metrics, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	store, err := objectstore.NewStore(cfg.StoreDir)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	return &Runner{
		cfg:     cfg,
		db:      database,
		loader:  db.NewLoader(database, logger),
		store:   store,
		geo:     geocode.NewClient(cfg.Geocode, logger),
		metrics: m,
		log:     logger,
	}, nil
}

// Close releases the runner's database handle.
func (r *Runner) Close() error {
	return r.db.Close()
}

// Run executes the selected domains under one batch. Domain failures are
// recorded and the remaining domains still run; only cancellation or a
// dead warehouse stops the whole batch.
func (r *Runner) Run(ctx context.Context, domains Domains) (*RunReport, error) {
	batch := models.NewBatchMetadata()
	r.log.Info("pipeline started", "batch_id", batch.BatchID)

	if err := r.db.RecordRunStart(batch.BatchID, batch.StartTime); err != nil {
		return nil, err
	}

	failed := false
	run := func(domain string, fn func(context.Context, *models.BatchMetadata) error) error {
		if err := fn(ctx, batch); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			failed = true
			batch.AddError("%s: %v", domain, err)
			r.metrics.AddErrors(domain, 1)
			r.log.Error("domain failed", "domain", domain, "error", err)
		}
		return nil
	}

	var runErr error
	if domains.Books && runErr == nil {
		runErr = run("books", func(ctx context.Context, b *models.BatchMetadata) error {
			return r.runBooks(ctx, b, domains)
		})
	}
	if domains.Quotes && runErr == nil {
		runErr = run("quotes", r.runQuotes)
	}
	if domains.Partners && runErr == nil {
		runErr = run("partners", func(ctx context.Context, b *models.BatchMetadata) error {
			return r.runPartners(ctx, b, domains.PartnerFile)
		})
	}

	batch.EndTime = time.Now().UTC()
	status := "completed"
	switch {
	case runErr != nil:
		status = "cancelled"
	case failed:
		status = "failed"
	}

	report := buildReport(batch, status)
	r.finishRun(batch, report)
	r.metrics.RunFinished(status)
	r.log.Info("pipeline finished",
		"batch_id", batch.BatchID, "status", status,
		"duration", batch.EndTime.Sub(batch.StartTime).Round(time.Millisecond),
		"errors", len(batch.Errors))

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

// finishRun persists the run row, exports the report and backs up the
// warehouse. Best effort: a failing backup must not fail the run.
func (r *Runner) finishRun(batch *models.BatchMetadata, report *RunReport) {
	body, err := report.JSON()
	if err != nil {
		r.log.Error("report marshal failed", "error", err)
		return
	}

	if err := r.db.RecordRunEnd(batch.BatchID, report.Status, string(body),
		len(batch.Errors), batch.EndTime); err != nil {
		r.log.Error("run row update failed", "error", err)
	}

	name := fmt.Sprintf("%s/report.json", batch.BatchID)
	if _, err := r.store.Upload(objectstore.BucketExports, name, body); err != nil {
		r.log.Error("report export failed", "error", err)
	}

	if uri, err := r.store.Backup(r.db.Path()); err != nil {
		r.log.Warn("backup failed", "error", err)
	} else {
		r.log.Info("warehouse backed up", "uri", uri)
	}
}

func (r *Runner) newFetcher(sc models.ScrapeConfig) *fetcher.Fetcher {
	policy := fetcher.RetryPolicy{
		MaxAttempts: sc.MaxRetries,
		BaseDelay:   time.Second,
		Exponential: true,
	}
	return fetcher.New(sc.Timeout.Std(), policy, fetcher.NewLimiter(sc.Delay.Std()), sc.UserAgent, r.log)
}

// runBooks extracts the catalog category by category, transforms and loads
// the records, and optionally stores the cover images.
func (r *Runner) runBooks(ctx context.Context, batch *models.BatchMetadata, domains Domains) error {
	stats := batch.Stats("books")
	cfg := r.cfg.Books
	scraper := scrape.NewBookScraper(r.newFetcher(cfg), cfg.BaseURL, cfg.MaxPages, batch.BatchID, r.log)

	cats, err := scraper.Categories(ctx)
	if err != nil {
		return fmt.Errorf("category listing: %w", err)
	}
	if domains.LimitCategories > 0 && len(cats) > domains.LimitCategories {
		cats = cats[:domains.LimitCategories]
		r.log.Info("category list capped", "count", len(cats))
	}

	var raws []models.RawBook
	for _, cat := range cats {
		it := scraper.IterateCategory(cat)
		for {
			raw, ok := it.Next(ctx)
			if !ok {
				break
			}
			raws = append(raws, raw)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, msg := range it.Stats().Errors {
			batch.AddError("books/%s: %s", cat.Name, msg)
		}
	}

	stats.Extracted = len(raws)
	r.metrics.AddRecords("books", "extracted", len(raws))
	if _, err := r.store.ExportJSON("books", "raw", batch.BatchID, raws); err != nil {
		batch.AddError("books raw export: %v", err)
	}

	cleans, tStats := transform.TransformBooks(raws, r.cfg.GBPToEUR)
	stats.Transformed = len(cleans)
	r.metrics.AddRecords("books", "transformed", len(cleans))
	for _, msg := range tStats.Errors {
		batch.AddError("books transform: %s", msg)
	}
	if _, err := r.store.ExportJSON("books", "clean", batch.BatchID, cleans); err != nil {
		batch.AddError("books clean export: %v", err)
	}

	loadStats, err := r.loader.LoadBooks(ctx, cleans)
	if err != nil {
		return fmt.Errorf("book load: %w", err)
	}
	stats.Loaded = loadStats.Inserted
	r.metrics.AddRecords("books", "loaded", loadStats.Inserted)
	for _, msg := range loadStats.Errors {
		batch.AddError("books load: %s", msg)
	}

	if domains.DownloadImages {
		r.downloadImages(ctx, scraper, cleans, batch)
	}
	return nil
}

// downloadImages stores cover images in the object store. Failures are
// recorded per image; the domain still succeeds.
func (r *Runner) downloadImages(ctx context.Context, scraper *scrape.BookScraper, books []models.CleanBook, batch *models.BatchMetadata) {
	saved := 0
	for _, b := range books {
		if b.ImageURL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return
		}
		data, err := scraper.FetchImage(ctx, b.ImageURL)
		if err != nil {
			batch.AddError("image %s: %v", b.ContentKey[:8], err)
			continue
		}
		name := fmt.Sprintf("%s/%s.jpg", batch.BatchID, b.ContentKey[:16])
		if _, err := r.store.Upload(objectstore.BucketImages, name, data); err != nil {
			batch.AddError("image store %s: %v", b.ContentKey[:8], err)
			continue
		}
		saved++
	}
	r.log.Info("cover images stored", "count", saved)
}

// runQuotes walks the paginated quote listing end to end.
func (r *Runner) runQuotes(ctx context.Context, batch *models.BatchMetadata) error {
	stats := batch.Stats("quotes")
	cfg := r.cfg.Quotes
	scraper := scrape.NewQuoteScraper(r.newFetcher(cfg), cfg.BaseURL, cfg.MaxPages, batch.BatchID, r.log)

	var raws []models.RawQuote
	it := scraper.Iterate()
	for {
		raw, ok := it.Next(ctx)
		if !ok {
			break
		}
		raws = append(raws, raw)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, msg := range it.Stats().Errors {
		batch.AddError("quotes: %s", msg)
	}

	stats.Extracted = len(raws)
	r.metrics.AddRecords("quotes", "extracted", len(raws))
	if _, err := r.store.ExportJSON("quotes", "raw", batch.BatchID, raws); err != nil {
		batch.AddError("quotes raw export: %v", err)
	}

	cleans, tStats := transform.TransformQuotes(raws, transform.NewLinguaDetector())
	stats.Transformed = len(cleans)
	r.metrics.AddRecords("quotes", "transformed", len(cleans))
	r.log.Info("quotes transformed", "in", tStats.In, "out", tStats.Out, "dropped", tStats.Dropped)
	if _, err := r.store.ExportJSON("quotes", "clean", batch.BatchID, cleans); err != nil {
		batch.AddError("quotes clean export: %v", err)
	}

	loadStats, err := r.loader.LoadQuotes(ctx, cleans)
	if err != nil {
		return fmt.Errorf("quote load: %w", err)
	}
	stats.Loaded = loadStats.Inserted
	r.metrics.AddRecords("quotes", "loaded", loadStats.Inserted)
	for _, msg := range loadStats.Errors {
		batch.AddError("quotes load: %s", msg)
	}
	return nil
}

// runPartners imports the spreadsheet, geocodes the validated rows and
// loads them. A structural spreadsheet problem fails the domain outright.
func (r *Runner) runPartners(ctx context.Context, batch *models.BatchMetadata, fileOverride string) error {
	stats := batch.Stats("partners")
	path := r.cfg.Partners.FilePath
	if fileOverride != "" {
		path = fileOverride
	}

	importer := partners.NewImporter(r.cfg.Salt, r.log)
	silver, bronze, err := importer.Import(ctx, path, batch.BatchID)
	if err != nil {
		return fmt.Errorf("spreadsheet import: %w", err)
	}
	for _, p := range importer.Stats().Problems {
		batch.AddError("partners row %d: %s: %s", p.Row, p.Field, p.Problem)
	}

	stats.Extracted = len(bronze)
	r.metrics.AddRecords("partners", "extracted", len(bronze))
	if _, err := r.store.ExportJSON("partners", "raw", batch.BatchID, bronze); err != nil {
		batch.AddError("partners raw export: %v", err)
	}

	cleans, _ := transform.TransformPartners(silver)
	r.enrichPartners(ctx, cleans, batch)
	stats.Transformed = len(cleans)
	r.metrics.AddRecords("partners", "transformed", len(cleans))
	if _, err := r.store.ExportJSON("partners", "clean", batch.BatchID, cleans); err != nil {
		batch.AddError("partners clean export: %v", err)
	}

	loadStats, err := r.loader.LoadPartners(ctx, cleans)
	if err != nil {
		return fmt.Errorf("partner load: %w", err)
	}
	stats.Loaded = loadStats.Inserted
	r.metrics.AddRecords("partners", "loaded", loadStats.Inserted)
	for _, msg := range loadStats.Errors {
		batch.AddError("partners load: %s", msg)
	}

	if _, err := r.store.ExportCSV("partners", batch.BatchID, partnerRows(cleans)); err != nil {
		batch.AddError("partners csv export: %v", err)
	}

	geoStats := r.geo.Stats()
	r.log.Info("geocoding done",
		"requests", geoStats.Requests, "cache_hits", geoStats.CacheHits,
		"found", geoStats.Found, "not_found", geoStats.NotFound)
	return nil
}

// partnerRows flattens the silver partner records for the CSV export
// consumed by the analytics side.
func partnerRows(cleans []models.CleanPartner) [][]string {
	rows := [][]string{{
		"nom", "slug", "ville", "code_postal", "specialite",
		"date_partenariat", "ca_annuel_range", "latitude", "longitude",
	}}
	for _, p := range cleans {
		lat, lon := "", ""
		if p.Latitude != nil {
			lat = strconv.FormatFloat(*p.Latitude, 'f', -1, 64)
		}
		if p.Longitude != nil {
			lon = strconv.FormatFloat(*p.Longitude, 'f', -1, 64)
		}
		rows = append(rows, []string{
			p.Nom, p.Slug, p.Ville, p.CodePostal, p.Specialite,
			p.DatePartenariat, p.RevenueRange, lat, lon,
		})
	}
	return rows
}

// enrichPartners fills coordinates in place. Unresolvable addresses keep
// nil coordinates; transport errors are recorded but do not fail the row.
func (r *Runner) enrichPartners(ctx context.Context, cleans []models.CleanPartner, batch *models.BatchMetadata) {
	addrs := make([]geocode.Address, len(cleans))
	for i, p := range cleans {
		addrs[i] = geocode.Address{Address: p.Adresse, City: p.Ville, Postcode: p.CodePostal}
	}

	for i, res := range r.geo.GeocodeBatch(ctx, addrs) {
		switch {
		case res.Err != nil:
			batch.AddError("geocode %q: %v", cleans[i].Nom, res.Err)
		case res.NotFound:
			r.log.Warn("address unresolved", "librairie", cleans[i].Nom)
		default:
			lat, lon := res.Result.Latitude, res.Result.Longitude
			cleans[i].Latitude = &lat
			cleans[i].Longitude = &lon
		}
	}
}
