package worker

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"taskflow/utils"
)

// BlobDeleter is the part of the blob store the janitor needs.
type BlobDeleter interface {
	Delete(ctx context.Context, handle string) error
}

// BlobJanitor deletes blobs whose owning records are gone. Enqueue never
// blocks; failures are logged and reported, never returned to the caller.
type BlobJanitor struct {
	store   BlobDeleter
	logger  *logrus.Entry
	queue   chan string
	pending sync.WaitGroup
}

func NewBlobJanitor(store BlobDeleter, logger *logrus.Entry, size int) *BlobJanitor {
	if size <= 0 {
		size = 256
	}
	return &BlobJanitor{
		store:  store,
		logger: logger,
		queue:  make(chan string, size),
	}
}

func (j *BlobJanitor) Enqueue(handles ...string) {
	for _, h := range handles {
		j.pending.Add(1)
		select {
		case j.queue <- h:
		default:
			j.pending.Done()
			j.logger.WithField("handle", h).Warn("blob cleanup queue full, dropping handle")
		}
	}
}

// Start processes the queue until ctx is cancelled.
func (j *BlobJanitor) Start(ctx context.Context) {
	j.logger.Info("Starting blob janitor...")
	for {
		select {
		case h := <-j.queue:
			j.delete(h)
		case <-ctx.Done():
			j.logger.Info("Stopping blob janitor...")
			return
		}
	}
}

// Drain waits until every enqueued handle has been processed. Start must be
// running.
func (j *BlobJanitor) Drain() {
	j.pending.Wait()
}

func (j *BlobJanitor) delete(handle string) {
	defer j.pending.Done()
	if err := j.store.Delete(context.Background(), handle); err != nil {
		utils.LogError(j.logger, "blob_cleanup", err, map[string]interface{}{"handle": handle})
		return
	}
	j.logger.WithField("handle", handle).Debug("blob deleted")
}
