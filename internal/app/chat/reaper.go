package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"roomchat/internal/pkg/logx"
)

// sweeper evicts stale connections and reports how many it removed.
type sweeper interface {
	ReapStale() int
}

// Reaper periodically asks its sweeper to evict connections whose heartbeat went stale.
// The sweep interval is independent of the staleness threshold and of the client heartbeat cadence.
type Reaper struct {
	sweeper  sweeper
	interval time.Duration
	logger   zerolog.Logger
}

// NewReaper returns a Reaper sweeping every interval.
func NewReaper(s sweeper, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Reaper{
		sweeper:  s,
		interval: interval,
		logger:   logx.Component("Reaper"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("Reaper loop started.")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Reaper loop stopped.")
			return
		case <-ticker.C:
			if reaped := r.sweeper.ReapStale(); reaped > 0 {
				r.logger.Info().Int("reaped", reaped).Msg("Evicted stale connections.")
			}
		}
	}
}
