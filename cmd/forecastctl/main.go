package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stockcast/internal/app"
	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/events"
	"github.com/andresuchdata/stockcast/internal/modelstore"
	"github.com/andresuchdata/stockcast/internal/repository/postgres"
	"github.com/andresuchdata/stockcast/pkg/logger"
)

const (
	dbKey     = "db"
	engineKey = "engine"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	db, err := sqlx.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	c.App.Metadata[dbKey] = postgres.Wrap(db)
	return nil
}

// initEngine opens the database and builds the engine with the latest stored model
func initEngine(c *cli.Context) error {
	if err := initDB(c); err != nil {
		return err
	}
	db := dbFrom(c)
	cfg := config.Load()

	snapshots, err := modelstore.FromConfig(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open model store: %w", err)
	}

	opts := app.Options{Snapshots: snapshots}
	if c.Bool("publish") {
		publisher, err := events.NewReorderPublisher(cfg.Events)
		if err != nil {
			return err
		}
		opts.Publisher = publisher
	}

	engine := app.New(cfg, app.Repos{
		Items:   postgres.NewInventoryRepository(db),
		Vendors: postgres.NewVendorRepository(db),
		Orders:  postgres.NewOrderRepository(db),
	}, opts)

	if err := engine.Trainer.Restore(c.Context); err != nil {
		return err
	}
	c.App.Metadata[engineKey] = engine
	return nil
}

func closeDB(c *cli.Context) error {
	if engine, ok := c.App.Metadata[engineKey].(*app.Engine); ok && engine != nil {
		if err := engine.Publisher.Close(); err != nil {
			log.Printf("warning: close publisher: %v", err)
		}
	}
	if db := dbFrom(c); db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *postgres.DB {
	db, _ := c.App.Metadata[dbKey].(*postgres.DB)
	return db
}

func engineFrom(c *cli.Context) *app.Engine {
	engine, _ := c.App.Metadata[engineKey].(*app.Engine)
	return engine
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logger.SetLevel(level)
	}

	cliApp := &cli.App{
		Name:     "forecastctl",
		Usage:    "Train the demand model and query forecasts from the command line",
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create the forecasting tables",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					if err := dbFrom(c).Migrate(c.Context); err != nil {
						return err
					}
					log.Println("schema applied")
					return nil
				},
			},
			{
				Name:  "import-counts",
				Usage: "Import stock counts from a CSV file (item_id,count,counted_at)",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "file", Usage: "CSV file path", Required: true},
				},
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					repo := postgres.NewInventoryRepository(dbFrom(c))
					n, err := importCounts(c.Context, repo, c.String("file"))
					if err != nil {
						return err
					}
					log.Printf("imported %d stock counts", n)
					return nil
				},
			},
			{
				Name:   "train",
				Usage:  "Train and publish a new model",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initEngine,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					status, err := engineFrom(c).Trainer.Train(c.Context)
					if err != nil {
						return err
					}
					return printJSON(status)
				},
			},
			{
				Name:  "forecast",
				Usage: "Forecast demand for one item",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "item", Usage: "Item id", Required: true},
					&cli.IntFlag{Name: "days", Usage: "Days ahead (0 uses the configured horizon)"},
				},
				Before: initEngine,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					result, err := engineFrom(c).Service.GetForecast(c.Context, c.String("item"), c.Int("days"))
					if err != nil {
						return err
					}
					return printJSON(result)
				},
			},
			{
				Name:  "reorder",
				Usage: "List items due for reorder",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.BoolFlag{Name: "publish", Usage: "Publish critical alerts to Kafka"},
				},
				Before: initEngine,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					report, err := engineFrom(c).Service.GetReorderReport(c.Context)
					if err != nil {
						return err
					}
					return printJSON(report)
				},
			},
			{
				Name:  "vendors",
				Usage: "Rank vendors for one item",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "item", Usage: "Item id", Required: true},
					&cli.Float64Flag{Name: "qty", Usage: "Quantity to order", Value: 1},
					&cli.StringFlag{Name: "pref", Usage: "price, speed or balanced", Value: "balanced"},
				},
				Before: initEngine,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					pref, ok := domain.ParsePreference(c.String("pref"))
					if !ok {
						return fmt.Errorf("unknown preference %q", c.String("pref"))
					}
					options, err := engineFrom(c).Service.FindBestVendor(c.Context, c.String("item"), c.Float64("qty"), pref)
					if err != nil {
						return err
					}
					return printJSON(options)
				},
			},
			{
				Name:  "optimize",
				Usage: "Plan a bulk order across vendors",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringSliceFlag{Name: "line", Usage: "item_id:quantity, repeatable", Required: true},
					&cli.StringFlag{Name: "pref", Usage: "price, speed or balanced", Value: "balanced"},
				},
				Before: initEngine,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					lines, err := parseLines(c.StringSlice("line"))
					if err != nil {
						return err
					}
					pref, ok := domain.ParsePreference(c.String("pref"))
					if !ok {
						return fmt.Errorf("unknown preference %q", c.String("pref"))
					}
					plan, err := engineFrom(c).Service.OptimizeBulkOrder(c.Context, lines, pref)
					if err != nil {
						return err
					}
					return printJSON(plan)
				},
			},
			{
				Name:  "refresh-vendors",
				Usage: "Recompute vendor lead time and on-time metrics",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.IntFlag{Name: "lookback-days", Value: 90},
				},
				Before: initEngine,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					since := time.Now().UTC().AddDate(0, 0, -c.Int("lookback-days"))
					updated, err := engineFrom(c).Service.RefreshVendorMetrics(c.Context, since)
					if err != nil {
						return err
					}
					return printJSON(updated)
				},
			},
			{
				Name:  "prune-models",
				Usage: "Delete old model snapshots from the model store",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "keep", Usage: "Snapshots to keep", Value: 5},
				},
				Action: func(c *cli.Context) error {
					if c.Int("keep") < 1 {
						return fmt.Errorf("--keep must be at least 1")
					}
					snapshots, err := modelstore.FromConfig(config.Load().Storage)
					if err != nil {
						return fmt.Errorf("open model store: %w", err)
					}
					removed, err := snapshots.Prune(c.Context, c.Int("keep"))
					if err != nil {
						return err
					}
					log.Printf("removed %d snapshots", removed)
					return nil
				},
			},
			{
				Name:  "export",
				Usage: "Write the reorder report and forecasts to an xlsx file",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "out", Usage: "Output file", Value: "reorder.xlsx"},
				},
				Before: initEngine,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					f, err := os.Create(c.String("out"))
					if err != nil {
						return fmt.Errorf("create %s: %w", c.String("out"), err)
					}
					defer f.Close()
					if err := engineFrom(c).Service.ExportWorkbook(c.Context, f); err != nil {
						return err
					}
					log.Printf("wrote %s", c.String("out"))
					return nil
				},
			},
		},
	}

	if err := cliApp.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// parseLines reads item_id:quantity pairs
func parseLines(raw []string) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, 0, len(raw))
	for _, r := range raw {
		id, qty, ok := strings.Cut(r, ":")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid line %q, expected item_id:quantity", r)
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(qty), 64)
		if err != nil || q <= 0 {
			return nil, fmt.Errorf("invalid quantity in %q", r)
		}
		lines = append(lines, domain.OrderLine{ItemID: strings.TrimSpace(id), Quantity: q})
	}
	return lines, nil
}
