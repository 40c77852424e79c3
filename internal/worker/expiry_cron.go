package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/melafrancom/erp-bulonera/internal/repository"
)

// StartExpiryCron sweeps sent quotes whose validity date has passed and
// flips them to expired. Runs on a fixed interval until ctx is cancelled.
func StartExpiryCron(ctx context.Context, quotes repository.QuoteRepository, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("quote expiry cron started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("quote expiry cron shutting down")
				return
			case <-ticker.C:
				expired, err := quotes.ExpireStale(ctx, time.Now())
				if err != nil {
					log.Error().Err(err).Msg("quote expiry sweep failed")
					continue
				}
				if expired > 0 {
					log.Info().Int64("expired", expired).Msg("stale quotes expired")
				}
			}
		}
	}()
}
