package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

// Maintenance runs the periodic sweep that expires stale waiting-queue
// rows and prunes old soft-deleted rows, grounded on agentoven's
// retention janitor (control-plane/internal/retention/janitor.go's
// ticker-driven Start/runCycle shape), supplementing the original
// tasks/maintenance.py sweep the distilled spec dropped.
type Maintenance struct {
	store               store.Store
	interval            time.Duration
	softDeleteRetention time.Duration
}

// NewMaintenance builds a sweep that runs every interval (clamped to a
// 1-minute floor) and purges soft-deleted rows older than retention.
func NewMaintenance(s store.Store, interval, retention time.Duration) *Maintenance {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Maintenance{store: s, interval: interval, softDeleteRetention: retention}
}

// Start runs the sweep in the current goroutine until ctx is cancelled.
func (m *Maintenance) Start(ctx context.Context) {
	log.Info().Dur("interval", m.interval).Msg("worker: maintenance sweep started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker: maintenance sweep stopped")
			return
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

func (m *Maintenance) runCycle(ctx context.Context) {
	start := time.Now()

	expired, err := m.expireWaitingQueue(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("worker: maintenance: expire waiting queue failed")
	}

	purged, err := m.store.PruneSoftDeleted(ctx, m.softDeleteRetention)
	if err != nil {
		log.Warn().Err(err).Msg("worker: maintenance: prune soft-deleted rows failed")
	}

	if expired > 0 || purged > 0 {
		log.Info().
			Int("expired_waiting", expired).
			Int("purged_rows", purged).
			Dur("elapsed", time.Since(start)).
			Msg("worker: maintenance cycle complete")
	}
}

// expireWaitingQueue transitions every VisitorWaitingQueue row past its
// expired_at to EXPIRED (spec §4.8's queue-timeout behavior).
func (m *Maintenance) expireWaitingQueue(ctx context.Context) (int, error) {
	entries, err := m.store.ListExpiredWaiting(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		entry.Status = models.QueueExpired
		if err := m.store.UpdateWaitingEntry(ctx, &entry); err != nil {
			log.Warn().Err(err).Str("queue_id", entry.ID).Msg("worker: maintenance: failed to expire waiting entry")
			continue
		}
		count++
	}
	return count, nil
}
