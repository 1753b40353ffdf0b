package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"collab-editor/internal/middleware"
	"collab-editor/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: SHARDED WORKER POOL

Store calls are the only slow operations in the collaboration core, so they
run on a fixed pool of workers instead of the connection goroutines.

Each worker owns one queue, and a document id always hashes to the same
worker. That gives two properties for free:
1. Writes for one document land in the order they were submitted
   (no "older write overtakes newer write" race inside this process)
2. A load queued after a write for the same document sees that write

Different documents still persist in parallel on different workers.
*/

// ErrPersistenceClosed is returned once Shutdown has started
var ErrPersistenceClosed = errors.New("persistence service is shutting down")

// PersistJob is a full-content write for one document
type PersistJob struct {
	DocumentID string
	Content    string
	// Done, when set, runs on the worker goroutine after the write
	Done func(err error)
}

type loadResult struct {
	doc *models.Document
	err error
}

type loadRequest struct {
	ctx        context.Context
	documentID string
	result     chan loadResult
}

// persistTask is either a write or a load
type persistTask struct {
	write *PersistJob
	load  *loadRequest
}

// PersistenceServiceImpl serialises store calls per document on a worker pool
type PersistenceServiceImpl struct {
	repo    DocumentRepository
	queues  []chan persistTask
	timeout time.Duration

	wg      sync.WaitGroup
	mu      sync.RWMutex // guards closed against concurrent enqueues
	closed  bool
	started bool
}

// NewPersistenceService creates the pool; call Start before submitting work
func NewPersistenceService(repo DocumentRepository, numWorkers, queueSize int, timeout time.Duration) *PersistenceServiceImpl {
	if numWorkers < 1 {
		numWorkers = 1
	}
	queues := make([]chan persistTask, numWorkers)
	for i := range queues {
		queues[i] = make(chan persistTask, queueSize)
	}

	return &PersistenceServiceImpl{
		repo:    repo,
		queues:  queues,
		timeout: timeout,
	}
}

// Start spawns one worker goroutine per queue
func (s *PersistenceServiceImpl) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	log.Printf("🔧 Starting persistence worker pool with %d workers", len(s.queues))
	for i, queue := range s.queues {
		s.wg.Add(1)
		go s.worker(i, queue)
	}
	log.Println("✓ Persistence worker pool started")
}

// worker drains its queue until the queue is closed
func (s *PersistenceServiceImpl) worker(id int, queue <-chan persistTask) {
	defer s.wg.Done()

	for task := range queue {
		switch {
		case task.write != nil:
			s.processWrite(task.write)
		case task.load != nil:
			s.processLoad(task.load)
		}
	}

	log.Printf("  Persistence worker %d stopped", id)
}

// Submit queues a write. It blocks while the document's queue is full (backpressure).
func (s *PersistenceServiceImpl) Submit(job PersistJob) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrPersistenceClosed
	}
	s.queues[s.shard(job.DocumentID)] <- persistTask{write: &job}
	return nil
}

// Load returns the document (creating it if absent) after every write already
// queued for the same document has been applied.
func (s *PersistenceServiceImpl) Load(ctx context.Context, documentID string) (*models.Document, error) {
	req := &loadRequest{
		ctx:        ctx,
		documentID: documentID,
		result:     make(chan loadResult, 1),
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrPersistenceClosed
	}
	select {
	case s.queues[s.shard(documentID)] <- persistTask{load: req}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case res := <-req.result:
		return res.doc, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *PersistenceServiceImpl) processWrite(job *PersistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	ctx, span := middleware.StartSpan(ctx, "Persistence.ReplaceContent",
		attribute.String("document.id", job.DocumentID),
		attribute.Int("content.length", len(job.Content)),
	)
	defer span.End()

	err := s.repo.ReplaceContent(ctx, job.DocumentID, job.Content)
	if err != nil {
		log.Printf("⚠️  Failed to persist document %s: %v", job.DocumentID, err)
		middleware.AddSpanError(ctx, err)
	}

	if job.Done != nil {
		job.Done(err)
	}
}

func (s *PersistenceServiceImpl) processLoad(req *loadRequest) {
	if err := req.ctx.Err(); err != nil {
		req.result <- loadResult{err: err}
		return
	}

	ctx, cancel := context.WithTimeout(req.ctx, s.timeout)
	defer cancel()

	ctx, span := middleware.StartSpan(ctx, "Persistence.LoadOrCreate",
		attribute.String("document.id", req.documentID),
	)
	defer span.End()

	doc, err := s.repo.LoadOrCreate(ctx, req.documentID)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		err = fmt.Errorf("failed to load document %s: %w", req.documentID, err)
	}
	req.result <- loadResult{doc: doc, err: err}
}

// shard maps a document id to a worker (FNV-1a)
func (s *PersistenceServiceImpl) shard(documentID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(documentID))
	return int(h.Sum32() % uint32(len(s.queues)))
}

// QueueLength returns the number of pending store calls across all workers
// Learning: Useful for monitoring/debugging
func (s *PersistenceServiceImpl) QueueLength() int {
	total := 0
	for _, queue := range s.queues {
		total += len(queue)
	}
	return total
}

// Shutdown stops accepting work, drains queued jobs and waits for the workers
func (s *PersistenceServiceImpl) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, queue := range s.queues {
		close(queue)
	}
	s.mu.Unlock()

	log.Println("🛑 Shutting down persistence service...")
	s.wg.Wait()
	log.Println("✓ Persistence service shutdown complete")
}
