package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openimaging/archivepipe/internal/repository"
)

// StaleSweepJob is a hardening job: it finds records stuck in a running
// state past a threshold (a crashed or hung worker) and puts them back in
// their queued state so the dispatch gate can pick them up again. It is
// disabled unless given a positive interval.
type StaleSweepJob struct {
	sessions  repository.SessionRepository
	interval  time.Duration
	threshold time.Duration
	done      chan struct{}
}

func NewStaleSweepJob(sessions repository.SessionRepository, interval, threshold time.Duration) *StaleSweepJob {
	return &StaleSweepJob{
		sessions:  sessions,
		interval:  interval,
		threshold: threshold,
		done:      make(chan struct{}),
	}
}

func (j *StaleSweepJob) Start() {
	if j.interval <= 0 {
		log.Info().Msg("stale sweep disabled")
		return
	}
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("threshold", j.threshold).Msg("stale sweep started")
}

func (j *StaleSweepJob) Stop() {
	close(j.done)
}

func (j *StaleSweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *StaleSweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stale, err := j.sessions.FindStaleRunning(ctx, time.Now().Add(-j.threshold))
	if err != nil {
		log.Error().Err(err).Msg("stale sweep query failed")
		return
	}

	for i := range stale {
		rec := &stale[i]
		queued := rec.Status.QueuedState()
		if err := j.sessions.Transition(ctx, rec.ID, rec.Status, queued, nil); err != nil {
			log.Debug().Err(err).Str("sessionId", rec.ID).Msg("stale record moved on, skipping")
			continue
		}
		log.Warn().
			Str("sessionId", rec.ID).
			Str("was", rec.Status.String()).
			Str("now", queued.String()).
			Time("lastUpdated", rec.UpdatedAt).
			Msg("stuck running session requeued")
	}
}
