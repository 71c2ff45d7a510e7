package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatusSyncer reconciles local session lifecycle against the broadcast
// provider.
type StatusSyncer interface {
	SyncStatus(ctx context.Context) error
}

// StatusPoller periodically drives the provider reconciliation so classes
// go Live when streaming starts and Completed when the teacher closes the
// broadcast from the studio instead of the app.
type StatusPoller struct {
	syncer   StatusSyncer
	interval time.Duration
	done     chan struct{}
}

func NewStatusPoller(syncer StatusSyncer, interval time.Duration) *StatusPoller {
	return &StatusPoller{
		syncer:   syncer,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *StatusPoller) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("status poller started")
}

func (j *StatusPoller) Stop() {
	close(j.done)
	log.Info().Msg("status poller stopped")
}

func (j *StatusPoller) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.poll()
		}
	}
}

func (j *StatusPoller) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := j.syncer.SyncStatus(ctx); err != nil {
		log.Error().Err(err).Msg("status sync failed")
	}
}
