package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/datapulse/ingest/models"
	"github.com/datapulse/ingest/pkg/metrics"
	"github.com/urfave/cli/v2"
)

func newLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func loadConfig(c *cli.Context) (*models.Config, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("max-pages") {
		cfg.Books.MaxPages = c.Int("max-pages")
		cfg.Quotes.MaxPages = c.Int("max-pages")
	}
	return cfg, nil
}

// runDomains executes one pipeline run over the selected domains, wiring
// signals to context cancellation.
func runDomains(c *cli.Context, domains Domains) error {
	logger := newLogger(c)

	cfg, err := loadConfig(c)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	m := metrics.New()
	if addr := c.String("metrics-addr"); addr != "" {
		logger.Info("metrics endpoint up", "addr", addr)
		m.Serve(addr)
	}

	runner, err := NewRunner(cfg, m, logger)
	if err != nil {
		logger.Error("failed to initialize pipeline", "error", err)
		os.Exit(2)
	}
	defer runner.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx, domains)
	if err != nil {
		logger.Error("pipeline aborted", "error", err)
		return cli.Exit("pipeline aborted", 1)
	}

	fmt.Print(report.Summary())
	if !report.Completed() {
		return cli.Exit("pipeline finished with failures", 1)
	}
	return nil
}

// RunAction runs the full pipeline over every domain.
func RunAction(c *cli.Context) error {
	return runDomains(c, Domains{
		Books:           true,
		Quotes:          true,
		Partners:        true,
		PartnerFile:     c.String("file"),
		DownloadImages:  c.Bool("images"),
		LimitCategories: c.Int("limit-categories"),
	})
}

// BooksAction runs the book catalog domain only.
func BooksAction(c *cli.Context) error {
	return runDomains(c, Domains{
		Books:           true,
		DownloadImages:  c.Bool("images"),
		LimitCategories: c.Int("limit-categories"),
	})
}

// QuotesAction runs the quotes domain only.
func QuotesAction(c *cli.Context) error {
	return runDomains(c, Domains{Quotes: true})
}

// PartnersAction runs the partner spreadsheet domain only.
func PartnersAction(c *cli.Context) error {
	return runDomains(c, Domains{
		Partners:    true,
		PartnerFile: c.String("file"),
	})
}
