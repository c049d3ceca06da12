package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

// ErrWriterClosed is returned by Enqueue after Close.
var ErrWriterClosed = errors.New("history writer closed")

// ErrQueueFull is returned when the write queue has no room.
var ErrQueueFull = errors.New("history write queue full")

// Writer persists records off the caller's goroutine. A single worker
// drains the queue, so records enqueued for one room reach the store in
// enqueue order.
type Writer struct {
	store   Store
	queue   chan domain.Record
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewWriter(store Store, queueSize int, timeout time.Duration) *Writer {
	if queueSize <= 0 {
		queueSize = 1
	}
	w := &Writer{
		store:   store,
		queue:   make(chan domain.Record, queueSize),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue never blocks. Dropped records are logged and reported.
func (w *Writer) Enqueue(record domain.Record) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}

	select {
	case w.queue <- record:
		return nil
	default:
		l := log.L()
		l.Warn().Str(log.FieldRoom, record.Room).Str(log.FieldUsername, record.Username).Msg("history queue full, dropping message")
		return ErrQueueFull
	}
}

func (w *Writer) run() {
	defer close(w.done)

	for record := range w.queue {
		ctx, cancel := w.context()
		if _, err := w.store.Append(ctx, record); err != nil {
			l := log.L()
			l.Error().Err(err).Str(log.FieldRoom, record.Room).Str(log.FieldUsername, record.Username).Msg("failed to persist message")
		}
		cancel()
	}
}

func (w *Writer) context() (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), w.timeout)
}

// Close stops accepting records and waits for the queue to drain or ctx to
// expire. It does not close the underlying store.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
