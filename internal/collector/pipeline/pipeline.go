// Package pipeline dispatches raw feed messages across a fixed pool of workers.
//
// Messages travel through a single bounded queue shared by every worker. When all workers are busy and the
// queue is full, Submit blocks, which pushes congestion back to the feed. Closing the pipeline lets the workers
// drain whatever is still queued before they exit; in-flight work is never cancelled.
package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mcronce/hass-event-collector/internal/collector/metrics"
)

// QueueCapacityPerWorker sizes the queue relative to the worker count.
const QueueCapacityPerWorker = 2

var ErrPipelineClosed = errors.New("pipeline closed")

type Pipeline struct {
	queue     chan []byte
	workers   int
	processor *Processor
	metrics   *metrics.Metrics

	// Guards closing the queue against concurrent Submits.
	mu     sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

func New(workers int, processor *Processor, m *metrics.Metrics) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		queue:     make(chan []byte, QueueCapacityPerWorker*workers),
		workers:   workers,
		processor: processor,
		metrics:   m,
	}
}

// Start launches the workers. It must be called once.
func (p *Pipeline) Start() {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.work(i)
	}
	log.WithField("workers", p.workers).Info("Started workers")
}

func (p *Pipeline) work(id int) {
	defer p.wg.Done()
	for payload := range p.queue {
		p.metrics.SetQueueDepth(len(p.queue))
		// Deliberately not the shutdown context: an item that has been dequeued is always finished.
		outcome := p.processor.Process(context.Background(), payload)
		p.metrics.RecordOutcome(string(outcome))
	}
	log.WithField("worker", id).Info("Channel closed; shutting down worker")
}

// Submit queues a payload, blocking while the queue is full. It returns ctx.Err() if ctx is done first and
// ErrPipelineClosed after Close.
func (p *Pipeline) Submit(ctx context.Context, payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPipelineClosed
	}
	select {
	case p.queue <- payload:
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting payloads. Workers finish everything already queued and then exit. Safe to call more than
// once.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
}

// Check fails once the pipeline has been closed.
func (p *Pipeline) Check() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPipelineClosed
	}
	return nil
}

// Wait blocks until every worker has exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) Workers() int {
	return p.workers
}

func (p *Pipeline) Capacity() int {
	return cap(p.queue)
}
