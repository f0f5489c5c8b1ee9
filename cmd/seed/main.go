package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"telegram-channel-publisher/internal/config"
	"telegram-channel-publisher/internal/domain/model"
	pg "telegram-channel-publisher/internal/infra/db/postgres"
	"telegram-channel-publisher/internal/infra/logging"
)

// seed fills an empty Post Store with sample scheduled posts for local runs.
// The running publisher picks them up on its next start.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema")
	}
	repo := pg.NewPostRepo(pool)

	// If posts already exist, do nothing
	existing, err := repo.List(ctx, nil, "", 5)
	if err != nil {
		logger.Fatal().Err(err).Msg("list posts")
	}
	if len(existing) > 0 {
		fmt.Printf("%d+ posts already present. No changes.\n", len(existing))
		return
	}

	loc, _ := cfg.Location()
	now := time.Now().In(loc)
	seed := []struct {
		Clock string
		Text  string
	}{
		{"09:00", "Morning digest: three things that moved the market this week."},
		{"13:30", "Launch day tips: ship small, measure, then ship again."},
		{"19:00", "Evening read: why cash flow beats revenue."},
	}

	for _, s := range seed {
		h, m, err := model.ParseClock(s.Clock)
		if err != nil {
			logger.Fatal().Err(err).Str("clock", s.Clock).Msg("bad seed time")
		}
		p, err := model.NewScheduledPost(model.WithSignature(s.Text, cfg.Channel.Signature), model.NextOccurrence(now, h, m))
		if err != nil {
			logger.Fatal().Err(err).Msg("build post")
		}
		if _, err := repo.Create(ctx, nil, p); err != nil {
			logger.Fatal().Err(err).Msg("create post")
		}
		fmt.Printf("seeded: #%d at %s\n", p.ID, p.ScheduledAt.Format("2006-01-02 15:04 MST"))
	}
	fmt.Println("Seeding complete.")
}
