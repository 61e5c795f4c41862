package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/datapulse/ingest/pkg/db"
	"github.com/urfave/cli/v2"
)

// StatsAction runs the post-load analytics queries against the gold
// schema and prints the report. It validates a finished load the way a
// dashboard would read it.
func StatsAction(c *cli.Context) error {
	logger := newLogger(c)

	cfg, err := loadConfig(c)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	if _, err := os.Stat(cfg.DBPath); err != nil {
		return cli.Exit(fmt.Sprintf("no database at %s: run the pipeline first", cfg.DBPath), 1)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(2)
	}
	defer database.Close()

	if err := writeStats(os.Stdout, database, c.Int("top")); err != nil {
		logger.Error("analytics queries failed", "error", err)
		return cli.Exit("analytics queries failed", 1)
	}
	return nil
}

// writeStats renders every analytics query to w.
func writeStats(w io.Writer, database *db.DB, top int) error {
	dash, err := database.GlobalDashboard()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	fmt.Fprintln(w, "dashboard")
	fmt.Fprintf(w, "  books=%d quotes=%d librairies=%d categories=%d authors=%d\n",
		dash.Books, dash.Quotes, dash.Librairies, dash.Categories, dash.Authors)

	cats, err := database.CategoryStats()
	if err != nil {
		return fmt.Errorf("category stats: %w", err)
	}
	fmt.Fprintln(w, "categories")
	for _, c := range cats {
		fmt.Fprintf(w, "  %-20s books=%d avg_price=%.2f€ avg_rating=%.2f stock=%d\n",
			c.Category, c.Books, c.AvgPrice, c.AvgRating, c.TotalStock)
	}

	authors, err := database.TopAuthors(top)
	if err != nil {
		return fmt.Errorf("top authors: %w", err)
	}
	fmt.Fprintln(w, "top authors")
	for _, a := range authors {
		fmt.Fprintf(w, "  %-30s %d quotes\n", a.Author, a.Quotes)
	}

	ranks, err := database.PriceRanks(3)
	if err != nil {
		return fmt.Errorf("price ranks: %w", err)
	}
	fmt.Fprintln(w, "most expensive books per category")
	current := ""
	for _, r := range ranks {
		if r.Category != current {
			current = r.Category
			fmt.Fprintf(w, "  [%s]\n", current)
		}
		fmt.Fprintf(w, "    #%d %s - %.2f€\n", r.Rank, truncate(r.Title, 40), r.PriceEUR)
	}

	libs, err := database.GeolocatedLibrairies()
	if err != nil {
		return fmt.Errorf("geolocated librairies: %w", err)
	}
	fmt.Fprintln(w, "geolocated librairies")
	for _, l := range libs {
		fmt.Fprintf(w, "  %s (%s): %.4f, %.4f\n", l.Nom, l.Ville, l.Latitude, l.Longitude)
	}

	checks, err := database.QualityReport()
	if err != nil {
		return fmt.Errorf("quality report: %w", err)
	}
	fmt.Fprintln(w, "data quality")
	for _, c := range checks {
		status := "OK"
		if !c.OK {
			status = "ATTENTION"
		}
		fmt.Fprintf(w, "  [%s] %s: %d\n", status, c.Check, c.Count)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
