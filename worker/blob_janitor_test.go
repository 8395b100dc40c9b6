package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type recordingDeleter struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
}

func (d *recordingDeleter) Delete(_ context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[handle] {
		return errors.New("disk on fire")
	}
	d.deleted = append(d.deleted, handle)
	return nil
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

func TestBlobJanitor_DeletesAndSurvivesFailures(t *testing.T) {
	store := &recordingDeleter{fail: map[string]bool{"bad": true}}
	j := NewBlobJanitor(store, quietLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Start(ctx)

	j.Enqueue("a", "bad", "b")
	j.Drain()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, store.deleted)
}

func TestBlobJanitor_EnqueueDoesNotBlockWhenFull(t *testing.T) {
	j := NewBlobJanitor(&recordingDeleter{}, quietLogger(), 1)

	// no consumer running: the second handle is dropped instead of blocking
	j.Enqueue("a", "b")
	assert.Len(t, j.queue, 1)
}
