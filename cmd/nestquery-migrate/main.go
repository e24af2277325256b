package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/nestquery/nestquery/internal/config"
	"github.com/nestquery/nestquery/internal/listings"
	listingspostgres "github.com/nestquery/nestquery/internal/listings/postgres"
	"github.com/nestquery/nestquery/internal/migrations"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	seed := flag.String("seed", "", "after migrating up, load listings: sample|synthetic")
	count := flag.Int("count", 50, "number of synthetic listings for -seed synthetic")
	randSeed := flag.Int64("rand-seed", 42, "random seed for -seed synthetic")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("nestquery-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.DSN == "" {
		fmt.Fprintln(os.Stderr, "NESTQUERY_DB_DSN or DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := listingspostgres.Open(ctx, listingspostgres.DBConfigFrom(cfg.Database))
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		rolledBack, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", rolledBack)
	case "status":
		statuses, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		for _, status := range statuses {
			state := "pending"
			if status.Applied {
				state = "applied"
			}
			fmt.Printf("%06d_%s\t%s\n", status.Version, status.Name, state)
		}
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}

	if *seed == "" {
		return
	}
	if *direction != "up" {
		fmt.Fprintln(os.Stderr, "-seed is only valid with -direction up")
		os.Exit(1)
	}

	var rows []listings.Accommodation
	switch *seed {
	case "sample":
		rows = listings.SampleAccommodations()
	case "synthetic":
		rows = listings.NewGenerator(*randSeed).Generate(*count)
	default:
		fmt.Fprintf(os.Stderr, "invalid seed source: %s\n", *seed)
		os.Exit(1)
	}

	repo := listingspostgres.NewRepository(db)
	existing, err := repo.CountAccommodations(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count listings failed: %v\n", err)
		os.Exit(1)
	}
	if existing > 0 && *seed == "sample" {
		fmt.Printf("accommodations already holds %d listing(s); skipping sample seed\n", existing)
		return
	}
	inserted, err := repo.InsertAccommodations(ctx, rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("inserted %d listing(s)\n", inserted)
}
