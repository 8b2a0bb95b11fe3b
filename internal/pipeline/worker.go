package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/openimaging/archivepipe/internal/config"
	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/queue"
	"github.com/openimaging/archivepipe/internal/repository"
)

// Dequeuer is the consuming side of the dispatch queue.
type Dequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Message, error)
}

// Worker consumes dispatch messages and routes each session to the build or
// archive stage based on its current status. Delivery is at-least-once, so
// a duplicate message for an already-advanced session is a no-op: the
// stage's compare-and-set claim fails and the message is dropped.
type Worker struct {
	queue       Dequeuer
	sessions    repository.SessionRepository
	build       *BuildStage
	archive     *ArchiveStage
	concurrency int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(
	q Dequeuer,
	sessions repository.SessionRepository,
	build *BuildStage,
	archive *ArchiveStage,
	concurrency int,
) *Worker {
	return &Worker{
		queue:       q,
		sessions:    sessions,
		build:       build,
		archive:     archive,
		concurrency: concurrency,
	}
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
	log.Info().Int("concurrency", w.concurrency).Msg("pipeline workers started")
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	log.Info().Msg("pipeline workers stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := w.queue.Dequeue(ctx, config.QueueDequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := retry.NextBackOff()
			log.Warn().Err(err).Dur("retryIn", wait).Msg("queue consume failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		if msg == nil {
			continue
		}
		w.handle(ctx, msg.SessionID)
	}
}

func (w *Worker) handle(ctx context.Context, sessionID string) {
	ctx, cancel := context.WithTimeout(ctx, config.StageTimeout)
	defer cancel()

	rec, err := w.sessions.FindByID(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("worker: session lookup failed")
		return
	}
	if rec == nil {
		log.Debug().Str("sessionId", sessionID).Msg("worker: record gone, session already archived")
		return
	}

	switch rec.Status {
	case model.StatusQueuedBuilding:
		err = w.build.Process(ctx, sessionID)
	case model.StatusQueuedArchiving:
		err = w.archive.Process(ctx, sessionID)
	default:
		log.Debug().
			Str("sessionId", sessionID).
			Str("status", rec.Status.String()).
			Msg("worker: stale message for session not in a queued state")
		return
	}

	if err != nil {
		// Lost claims and vanished records are the expected duplicate
		// deliveries of an at-least-once queue.
		if apperrors.IsInvalidTransition(err) || apperrors.IsNotFound(err) {
			log.Debug().Err(err).Str("sessionId", sessionID).Msg("worker: session claimed elsewhere")
			return
		}
		log.Error().Err(err).Str("sessionId", sessionID).Msg("worker: stage invocation failed")
	}
}
