package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	QueuePrecios = "jobs:precios"

	JobPrecios = "precios"

	// MaxAttempts is how many times a job runs before it goes to the DLQ.
	MaxAttempts = 3
)

// ErrPayloadInvalido marks a job that can never succeed; it skips retries.
var ErrPayloadInvalido = errors.New("payload invalido")

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts,omitempty"`
}

// Handler processes the payload of one job type.
type Handler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// WorkerHandlers maps job types to their handler. Wired in cmd/server.
type WorkerHandlers struct {
	Precios Handler
}

func (h *WorkerHandlers) handlerFor(jobType string) Handler {
	switch jobType {
	case JobPrecios:
		return h.Precios
	}
	return nil
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP. A nil Dispatcher drops jobs, which
// is what unit tests want.
type Dispatcher struct {
	rdb    *redis.Client
	inline *WorkerHandlers
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	if rdb == nil {
		return nil
	}
	return &Dispatcher{rdb: rdb}
}

// NewInlineDispatcher runs every job synchronously in the caller's goroutine.
// Used when Redis is not configured so price recalculation still happens.
func NewInlineDispatcher(handlers *WorkerHandlers) *Dispatcher {
	return &Dispatcher{inline: handlers}
}

// EnqueuePrecios pushes a price-recalculation job to Redis.
func (d *Dispatcher) EnqueuePrecios(ctx context.Context, payload PreciosJobPayload) error {
	if d == nil {
		return nil
	}
	return d.enqueue(ctx, QueuePrecios, JobPrecios, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	if d.inline != nil {
		return runJob(ctx, d.inline, job)
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the job queues.
// Each goroutine blocks on BRPOP: zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, id int) {
	queues := []string{QueuePrecios}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, rdb, queue, "desconocido", json.RawMessage(raw), err.Error(), 0)
		return
	}

	job.Attempts++
	err := runJob(ctx, handlers, job)
	switch {
	case err == nil:
		log.Info().Str("type", job.Type).Str("queue", queue).Int("attempt", job.Attempts).Msg("job processed")
	case errors.Is(err, ErrPayloadInvalido) || job.Attempts >= MaxAttempts:
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
	default:
		log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeued")
		requeue(ctx, rdb, queue, job)
	}
}

// runJob resolves the handler and runs it, turning panics into errors so a
// bad job cannot kill its worker goroutine.
func runJob(ctx context.Context, handlers *WorkerHandlers, job Job) (err error) {
	h := handlers.handlerFor(job.Type)
	if h == nil {
		return fmt.Errorf("%w: tipo de job %q sin handler", ErrPayloadInvalido, job.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Process(ctx, job.Payload)
}

func requeue(ctx context.Context, rdb *redis.Client, queue string, job Job) {
	encoded, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := rdb.LPush(ctx, queue, encoded).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("failed to requeue job")
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}
