// Package dedupe remembers recently accepted submission ids so retried
// client requests are not scored twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 100_000

// Deduper records seen submission ids.
type Deduper interface {
	// SeenAndRecord reports whether id was seen before and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a submission that could not be enqueued can be
	// retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// fifo keeps at most maxSize ids and evicts the oldest first. maxSize <= 0
// disables eviction.
type fifo struct {
	mu      sync.Mutex
	order   *list.List
	index   map[string]*list.Element
	maxSize int
}

// NewInMemory creates a bounded in-memory Deduper.
func NewInMemory(opts ...Option) Deduper {
	d := &fifo{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.order = list.New()
	d.index = make(map[string]*list.Element)
	return d
}

func (d *fifo) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(string))
	}
	d.index[id] = d.order.PushBack(id)
	return false
}

func (d *fifo) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.index[id]; ok {
		d.order.Remove(el)
		delete(d.index, id)
	}
}

func (d *fifo) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
