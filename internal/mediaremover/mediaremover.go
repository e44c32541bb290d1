// Package mediaremover deletes images from the media host in the background,
// so that removing a meme or folder does not wait for the host.
package mediaremover

import (
	"context"
	"fmt"
	"time"

	"github.com/YashLadlapure/meme-vault/internal/logger"
)

// maxAttempts bounds how many flushes a failing id takes part in.
const maxAttempts = 3

const flushTimeout = 30 * time.Second

type mediaDestroyer interface {
	Destroy(ctx context.Context, publicID string) error
}

type task struct {
	publicID string
	attempts int
}

type MediaRemover struct {
	queue                    chan *task
	store                    mediaDestroyer
	delayBetweenQueueFetches time.Duration
	errorChannel             chan error
	done                     chan struct{}
}

func New(
	store mediaDestroyer,
	channelCapacity int,
	delayBetweenQueueFetches time.Duration,
) *MediaRemover {
	return &MediaRemover{
		store:                    store,
		queue:                    make(chan *task, channelCapacity),
		delayBetweenQueueFetches: delayBetweenQueueFetches,
		errorChannel:             make(chan error, channelCapacity),
		done:                     make(chan struct{}),
	}
}

// ListenErrors calls callback for every failed deletion.
func (r *MediaRemover) ListenErrors(callback func(error)) {
	go func() {
		for err := range r.errorChannel {
			callback(err)
		}
	}()
}

func (r *MediaRemover) reportError(err error) {
	select {
	case r.errorChannel <- err:
	default:
		logger.Log.Infoln("media remover error channel is full, dropping:", err)
	}
}

// flush destroys every queued id and returns those worth another try.
func (r *MediaRemover) flush(ctx context.Context, tasks []task) []task {
	var retry []task
	removed := 0
	for _, t := range tasks {
		err := r.store.Destroy(ctx, t.publicID)
		if err == nil {
			removed++
			continue
		}

		t.attempts++
		r.reportError(fmt.Errorf("in internal/mediaremover/mediaremover.go/flush(): destroying %q, attempt %d: %w", t.publicID, t.attempts, err))
		if t.attempts < maxAttempts {
			retry = append(retry, t)
		}
	}
	logger.Log.Infof("processed removing of %d media files, %d to retry", removed, len(retry))

	return retry
}

func (r *MediaRemover) drainQueue(tasks []task) []task {
	for {
		select {
		case t := <-r.queue:
			tasks = append(tasks, *t)
		default:
			return tasks
		}
	}
}

// Run starts the worker. When ctx is cancelled the queued ids are flushed
// once more and the worker stops; Wait blocks until then.
func (r *MediaRemover) Run(ctx context.Context) {
	go func() {
		defer close(r.errorChannel)
		defer close(r.done)

		ticker := time.NewTicker(r.delayBetweenQueueFetches)
		defer ticker.Stop()

		var tasks []task

		for {
			select {
			case t := <-r.queue:
				tasks = append(tasks, *t)
			case <-ticker.C:
				if len(tasks) == 0 {
					continue
				}
				tasks = r.flush(ctx, tasks)
			case <-ctx.Done():
				tasks = r.drainQueue(tasks)
				if len(tasks) == 0 {
					return
				}
				flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
				r.flush(flushCtx, tasks)
				cancel()
				return
			}
		}
	}()
}

// Wait blocks until the worker started by Run has stopped.
func (r *MediaRemover) Wait() {
	<-r.done
}

// EnqueueJob schedules the deletion of the given public ids.
func (r *MediaRemover) EnqueueJob(publicIDs ...string) {
	for _, publicID := range publicIDs {
		if publicID == "" {
			continue
		}
		select {
		case r.queue <- &task{publicID: publicID}:
		case <-r.done:
			logger.Log.Infoln("media remover is stopped, not removing", publicID)
			return
		}
	}
}
