package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openimaging/archivepipe/internal/config"
	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/pipeline"
	redisclient "github.com/openimaging/archivepipe/internal/redis"
	"github.com/openimaging/archivepipe/internal/repository"
)

// Enqueuer is the submitting side of the dispatch queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, sessionID string) error
}

// Locker provides the cross-node mutual exclusion for the scan.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// DispatchJob is the gate between the registry and the workers: on a fixed
// interval it scans for sessions ready for their next stage and submits one
// processing request per session per scan. A process-wide mutex plus a
// redis lock guarantee a single scan in flight across the deployment, so
// overlapping scans cannot double-submit a session.
type DispatchJob struct {
	sessions repository.SessionRepository
	queue    Enqueuer
	probe    pipeline.ActivityProbe
	locker   Locker
	interval time.Duration

	mu   sync.Mutex
	done chan struct{}
}

func NewDispatchJob(
	sessions repository.SessionRepository,
	queue Enqueuer,
	probe pipeline.ActivityProbe,
	locker Locker,
	interval time.Duration,
) *DispatchJob {
	return &DispatchJob{
		sessions: sessions,
		queue:    queue,
		probe:    probe,
		locker:   locker,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *DispatchJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("dispatch job started")
}

func (j *DispatchJob) Stop() {
	close(j.done)
	log.Info().Msg("dispatch job stopped")
}

func (j *DispatchJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Scan()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.Scan()
		}
	}
}

// Scan runs one dispatch cycle. Errors are logged, never propagated: a
// failed cycle is retried wholesale on the next tick.
func (j *DispatchJob) Scan() {
	if !j.mu.TryLock() {
		log.Debug().Msg("dispatch scan already running, skipping cycle")
		return
	}
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), config.DispatchScanTimeout)
	defer cancel()

	acquired, err := j.locker.AcquireLock(ctx, redisclient.DispatchLockKey, config.DispatchLockTTL)
	if err != nil {
		log.Error().Err(err).Msg("dispatch lock unavailable")
		return
	}
	if !acquired {
		log.Debug().Msg("dispatch lock held by another node, skipping cycle")
		return
	}
	defer func() {
		if err := j.locker.ReleaseLock(ctx, redisclient.DispatchLockKey); err != nil {
			log.Warn().Err(err).Msg("dispatch lock not released, will expire")
		}
	}()

	candidates, err := j.sessions.FindReadyForArchive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("dispatch scan query failed")
		return
	}

	for i := range candidates {
		j.dispatch(ctx, &candidates[i])
	}
}

func (j *DispatchJob) dispatch(ctx context.Context, rec *model.SessionRecord) {
	switch rec.Status {
	case model.StatusReceiving:
		j.dispatchReceiving(ctx, rec)
	case model.StatusQueuedArchiving:
		j.dispatchQueued(ctx, rec)
	}
}

// dispatchReceiving advances an idle RECEIVING session into the build queue
// and submits it. The compare-and-set advance makes a concurrent scan's
// duplicate attempt fail cleanly; losing that race is expected, not an
// error.
func (j *DispatchJob) dispatchReceiving(ctx context.Context, rec *model.SessionRecord) {
	receiving, err := j.probe.IsReceiving(ctx, rec.Location)
	if err != nil {
		log.Error().Err(err).Str("sessionId", rec.ID).Msg("activity probe failed, skipping session")
		return
	}
	if receiving {
		log.Debug().Str("sessionId", rec.ID).Msg("session still receiving files, skipping cycle")
		return
	}

	if err := j.sessions.Transition(ctx, rec.ID, model.StatusReceiving, model.StatusQueuedBuilding, nil); err != nil {
		if apperrors.IsInvalidTransition(err) {
			log.Debug().Str("sessionId", rec.ID).Msg("session advanced by another actor, skipping")
			return
		}
		log.Error().Err(err).Str("sessionId", rec.ID).Msg("queue-for-build transition failed")
		return
	}

	if err := j.queue.Enqueue(ctx, rec.ID); err != nil {
		// Put the record back so the next scan retries it.
		log.Error().Err(err).Str("sessionId", rec.ID).Msg("dispatch submission failed, reverting session")
		if rbErr := j.sessions.Transition(ctx, rec.ID, model.StatusQueuedBuilding, model.StatusReceiving, nil); rbErr != nil {
			log.Error().Err(rbErr).Str("sessionId", rec.ID).Msg("dispatch revert failed, session stuck queued")
		}
		return
	}

	log.Info().Str("sessionId", rec.ID).Msg("session queued for build")
}

// dispatchQueued re-submits a session already sitting in the archive queue.
// A duplicate submission is harmless: the worker's claim is a
// compare-and-set, so only the first delivery wins.
func (j *DispatchJob) dispatchQueued(ctx context.Context, rec *model.SessionRecord) {
	if err := j.queue.Enqueue(ctx, rec.ID); err != nil {
		log.Error().Err(err).Str("sessionId", rec.ID).Msg("dispatch submission failed, will retry next scan")
		return
	}
	log.Info().Str("sessionId", rec.ID).Msg("session submitted for archiving")
}
