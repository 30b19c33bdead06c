package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthtable/marketplace/internal/adapters/database"
	"github.com/hearthtable/marketplace/internal/adapters/search"
	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/typesense"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	"github.com/hearthtable/marketplace/internal/query"
	"github.com/hearthtable/marketplace/pkg/config"
)

const indexPageSize = 200

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the listings collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		var err error
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger("marketplace-indexer", cfg.Server.Environment, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", typesense.ListingsCollection).Msg("dropping collection before reindex")
		if err := tsClient.DropCollection(ctx); err != nil {
			return err
		}
	}

	index := search.NewTypesenseAdapter(tsClient)
	if err := index.InitSchema(ctx); err != nil {
		return err
	}

	listingRepo := database.NewListingAdapter(pgClient)

	indexed, failed := 0, 0
	for _, kind := range []entities.ListingKind{entities.ListingKindStay, entities.ListingKindFood} {
		base := query.Compose(entities.FilterState{Kind: kind})
		for page := 1; ; page++ {
			listings, total, err := listingRepo.Query(ctx, base.Paginate(page, indexPageSize))
			if err != nil {
				return fmt.Errorf("failed to load %s listings: %w", kind, err)
			}

			for _, l := range listings {
				if err := index.Index(ctx, l); err != nil {
					failed++
					log.Warn().Err(err).Str("listing_id", l.ID).Msg("failed to index listing")
					continue
				}
				indexed++
			}

			if len(listings) < indexPageSize || page*indexPageSize >= total {
				break
			}
		}
	}

	log.Info().Int("indexed", indexed).Int("failed", failed).Msg("listings indexed")
	return nil
}
