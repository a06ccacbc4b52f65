package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/obs"
	"github.com/noah-isme/lumina-dealer/internal/store"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type fixtures struct {
	SalesReps []struct {
		Name       string `yaml:"name"`
		Commission string `yaml:"commission_percent"`
	} `yaml:"sales_reps"`
	Vehicles []struct {
		Make      string `yaml:"make"`
		Model     string `yaml:"model"`
		Year      int    `yaml:"year"`
		Price     string `yaml:"price"`
		CostPrice string `yaml:"cost_price"`
		Mileage   int    `yaml:"mileage"`
		Expenses  []struct {
			Amount      string `yaml:"amount"`
			Category    string `yaml:"category"`
			Description string `yaml:"description"`
		} `yaml:"expenses"`
	} `yaml:"vehicles"`
}

func main() {
	_ = godotenv.Load()

	file := flag.String("file", "", "YAML fixture file; the bundled fixtures are used when empty")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	raw := defaultFixtures
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			logger.Fatal().Err(err).Str("file", *file).Msg("read fixtures")
		}
		raw = data
	}
	var fx fixtures
	if err := yaml.UnmarshalStrict(raw, &fx); err != nil {
		logger.Fatal().Err(err).Msg("parse fixtures")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	db := store.New(pool)

	for _, r := range fx.SalesReps {
		pct, err := amount(r.Commission)
		if err != nil {
			logger.Fatal().Err(err).Str("rep", r.Name).Msg("commission percent")
		}
		id, err := db.InsertSalesRep(ctx, deal.SalesRep{Name: r.Name, CommissionPercent: pct})
		if err != nil {
			logger.Fatal().Err(err).Msg("seed sales rep")
		}
		logger.Info().Str("id", id.String()).Str("name", r.Name).Msg("sales rep")
	}

	for _, v := range fx.Vehicles {
		price, err := amount(v.Price)
		if err != nil {
			logger.Fatal().Err(err).Str("model", v.Model).Msg("vehicle price")
		}
		cost, err := amount(v.CostPrice)
		if err != nil {
			logger.Fatal().Err(err).Str("model", v.Model).Msg("vehicle cost price")
		}
		vehicle := deal.Vehicle{Make: v.Make, Model: v.Model, Year: v.Year, Price: price, CostPrice: cost, Mileage: v.Mileage}
		id, err := db.InsertVehicle(ctx, vehicle)
		if err != nil {
			logger.Fatal().Err(err).Msg("seed vehicle")
		}
		for _, e := range v.Expenses {
			amt, err := amount(e.Amount)
			if err != nil {
				logger.Fatal().Err(err).Str("vehicle", vehicle.Title()).Msg("expense amount")
			}
			entry := deal.LedgerEntry{Amount: amt, Category: e.Category, Description: e.Description}
			if err := db.InsertVehicleExpense(ctx, id, entry); err != nil {
				logger.Fatal().Err(err).Msg("seed vehicle expense")
			}
		}
		logger.Info().Str("id", id.String()).Str("vehicle", vehicle.Title()).Int("expenses", len(v.Expenses)).Msg("vehicle")
	}

	logger.Info().Int("sales_reps", len(fx.SalesReps)).Int("vehicles", len(fx.Vehicles)).Msg("seeding completed")
}

func amount(s string) (deal.Money, error) {
	if s == "" {
		return deal.Zero, nil
	}
	m, err := deal.ParseMoney(s)
	if err != nil {
		return deal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return m, nil
}
