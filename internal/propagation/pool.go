package propagation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("propagation pool is closed")

// MarkRequest carries change marks for one user.
type MarkRequest struct {
	UserID string
	Marks  map[string]string
}

// MarkWriter persists change marks.
type MarkWriter interface {
	WriteMarks(ctx context.Context, userID string, marks map[string]string) error
}

// WorkerPool batches change marks per user and writes them in the background.
type WorkerPool struct {
	writer       MarkWriter
	requestChan  chan MarkRequest
	batchSize    int
	batchTimeout time.Duration
	workerCount  int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	closeMu      sync.RWMutex
	closed       bool
	shutdownOnce sync.Once
}

type Config struct {
	WorkerCount  int
	BufferSize   int
	BatchSize    int
	BatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		WorkerCount:  2,
		BufferSize:   100,
		BatchSize:    50,
		BatchTimeout: time.Second,
	}
}

func NewWorkerPool(writer MarkWriter, config Config) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = DefaultConfig().BatchTimeout
	}

	return &WorkerPool{
		writer:       writer,
		requestChan:  make(chan MarkRequest, config.BufferSize),
		batchSize:    config.BatchSize,
		batchTimeout: config.BatchTimeout,
		workerCount:  config.WorkerCount,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (p *WorkerPool) Start() {
	log.Info().
		Int("workers", p.workerCount).
		Int("batchSize", p.batchSize).
		Dur("batchTimeout", p.batchTimeout).
		Msg("Starting propagation worker pool")

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	log.Debug().Int("workerID", id).Msg("Propagation worker started")

	batch := make(map[string]map[string]string) // userID -> key -> value
	totalMarks := 0
	var timer *time.Timer
	var timerC <-chan time.Time

	processBatch := func() {
		if len(batch) == 0 {
			return
		}

		log.Debug().
			Int("workerID", id).
			Int("users", len(batch)).
			Msg("Writing propagation batch")

		for userID, marks := range batch {
			if err := p.writer.WriteMarks(p.ctx, userID, marks); err != nil {
				log.Error().
					Err(err).
					Int("workerID", id).
					Str("userID", userID).
					Int("markCount", len(marks)).
					Msg("Failed to write propagation marks")
			}
		}

		for k := range batch {
			delete(batch, k)
		}
		totalMarks = 0
	}

	startOrResetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(p.batchTimeout)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.batchTimeout)
		timerC = timer.C
	}

	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timerC = nil
	}

	for {
		select {
		case <-p.ctx.Done():
			stopTimer()
			return

		case req, ok := <-p.requestChan:
			if !ok {
				processBatch()
				stopTimer()
				return
			}

			batchWasEmpty := len(batch) == 0
			userMarks, exists := batch[req.UserID]
			if !exists {
				userMarks = make(map[string]string, len(req.Marks))
				batch[req.UserID] = userMarks
			}
			for k, v := range req.Marks {
				if _, seen := userMarks[k]; !seen {
					totalMarks++
				}
				userMarks[k] = v
			}

			if totalMarks >= p.batchSize {
				processBatch()
				stopTimer()
			} else if batchWasEmpty {
				startOrResetTimer()
			}

		case <-timerC:
			processBatch()
			stopTimer()
		}
	}
}

// Submit queues marks for userID. It blocks while the queue is full.
func (p *WorkerPool) Submit(userID string, marks map[string]string) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	req := MarkRequest{UserID: userID, Marks: marks}
	select {
	case p.requestChan <- req:
		return nil
	default:
		log.Warn().
			Str("userID", userID).
			Int("markCount", len(marks)).
			Msg("Propagation queue is full, blocking")

		select {
		case <-p.ctx.Done():
			return context.Canceled
		case p.requestChan <- req:
			return nil
		}
	}
}

// Shutdown stops accepting marks and waits for queued ones to be written.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		log.Info().Msg("Shutting down propagation worker pool")

		p.closeMu.Lock()
		p.closed = true
		close(p.requestChan)
		p.closeMu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Info().Msg("Propagation worker pool shut down gracefully")
		case <-time.After(timeout):
			log.Warn().Msg("Propagation worker pool shutdown timeout, forcing shutdown")
			p.cancel()
			<-done
			shutdownErr = context.DeadlineExceeded
		}
		p.cancel()
	})

	return shutdownErr
}

func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		QueueSize:   len(p.requestChan),
		QueueCap:    cap(p.requestChan),
		WorkerCount: p.workerCount,
	}
}

type PoolStats struct {
	QueueSize   int
	QueueCap    int
	WorkerCount int
}
