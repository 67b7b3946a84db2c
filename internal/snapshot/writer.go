package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

const (
	writerQueueSize = 256

	// writerSaveTimeout bounds one queued snapshot write.
	writerSaveTimeout = 5 * time.Second
)

// Writer persists device snapshots asynchronously.
//
// Enqueue is called from registry listeners and must not block, so
// writes go through a buffered queue drained by a background
// goroutine, the same shape as DiscrepancyRecorder. When the queue is
// full the snapshot is dropped with a warning; a dropped write is
// recovered by the next commit or the shutdown persist.
type Writer struct {
	repo   Repository
	logger Logger

	queue chan *point.Device
	done  chan struct{}
	once  sync.Once
}

// NewWriter creates a writer over a repository and starts its drain
// goroutine. Call Close to flush and stop it.
func NewWriter(repo Repository) *Writer {
	w := &Writer{
		repo:   repo,
		logger: noopLogger{},
		queue:  make(chan *point.Device, writerQueueSize),
		done:   make(chan struct{}),
	}
	go w.drain()
	return w
}

// SetLogger installs a logger. Call before the first Enqueue.
func (w *Writer) SetLogger(l Logger) {
	if l != nil {
		w.logger = l
	}
}

// Enqueue queues one snapshot for persistence. Never blocks. The
// device must not be mutated after the call; hand in a copy.
func (w *Writer) Enqueue(dev *point.Device) {
	if dev == nil {
		return
	}
	select {
	case w.queue <- dev:
	default:
		w.logger.Warn("snapshot queue full, dropping write", "device_id", dev.ID)
	}
}

// Close stops accepting snapshots, flushes the queue and waits for
// the drain goroutine to exit.
func (w *Writer) Close() {
	w.once.Do(func() {
		close(w.queue)
		<-w.done
	})
}

func (w *Writer) drain() {
	defer close(w.done)
	for dev := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writerSaveTimeout)
		if err := w.repo.Save(ctx, dev); err != nil {
			w.logger.Warn("snapshot save failed", "device_id", dev.ID, "error", err)
		}
		cancel()
	}
}
