package main

import (
	"log"
	"os"

	"github.com/datapulse/ingest/internal/pipeline"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "datapulse",
		Usage: "staged data pipeline: scrape, import, geocode, load",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Value:   "datapulse.yaml",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "only log errors",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "expose Prometheus metrics on this address (e.g. :9090)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the full pipeline over every domain",
				Action: pipeline.RunAction,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-pages", Usage: "cap pages per listing"},
					&cli.IntFlag{Name: "limit-categories", Usage: "cap book categories, 0 = all"},
					&cli.BoolFlag{Name: "images", Usage: "download book cover images"},
					&cli.StringFlag{Name: "file", Usage: "partner spreadsheet path"},
				},
			},
			{
				Name:   "books",
				Usage:  "scrape, transform and load the book catalog",
				Action: pipeline.BooksAction,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-pages", Usage: "cap pages per listing"},
					&cli.IntFlag{Name: "limit-categories", Usage: "cap book categories, 0 = all"},
					&cli.BoolFlag{Name: "images", Usage: "download book cover images"},
				},
			},
			{
				Name:   "quotes",
				Usage:  "scrape, transform and load the quotes listing",
				Action: pipeline.QuotesAction,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-pages", Usage: "cap pages per listing"},
				},
			},
			{
				Name:   "partners",
				Usage:  "import, geocode and load the partner spreadsheet",
				Action: pipeline.PartnersAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "partner spreadsheet path"},
				},
			},
			{
				Name:   "stats",
				Usage:  "run the analytics queries against the loaded database",
				Action: pipeline.StatsAction,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top", Usage: "author ranking size", Value: 5},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
