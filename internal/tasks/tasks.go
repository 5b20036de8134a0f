package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"fieldquote/backend/internal/storage"
)

// Task types.
const (
	TypeImageCleanup = "images:cleanup"
)

// ImageCleanupPayload lists object-store keys orphaned by a record deletion.
type ImageCleanupPayload struct {
	Keys []string `json:"keys"`
	Ref  string   `json:"ref"` // document the images belonged to, for logs
}

// NewImageCleanupTask builds the cleanup task for a set of orphaned keys.
func NewImageCleanupTask(keys []string, ref string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageCleanupPayload{Keys: keys, Ref: ref})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image cleanup payload: %w", err)
	}
	return asynq.NewTask(TypeImageCleanup, payload, asynq.Queue("low")), nil
}

// --- Task Client (Enqueuing tasks) ---

// NewClient creates an asynq client sharing the application's Redis address.
func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// Queue enqueues best-effort cleanup work. It satisfies the narrow interface
// the lifecycle services depend on, so tests can swap in a recorder.
type Queue struct {
	client *asynq.Client
}

// NewQueue wraps an asynq client.
func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client}
}

// EnqueueImageCleanup schedules deletion of orphaned object-store keys.
// Enqueue failures are logged, not propagated: the record deletion has
// already committed and must not be reported as failed.
func (q *Queue) EnqueueImageCleanup(ctx context.Context, keys []string, ref string) error {
	if len(keys) == 0 {
		return nil
	}
	task, err := NewImageCleanupTask(keys, ref)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue image cleanup for %s: %w", ref, err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of background tasks.
type TaskProcessor struct {
	store storage.ObjectStore
}

// NewTaskProcessor creates a processor with its dependencies.
func NewTaskProcessor(store storage.ObjectStore) *TaskProcessor {
	return &TaskProcessor{store: store}
}

// HandleImageCleanupTask deletes each orphaned key. Individual delete
// failures are logged and skipped; cleanup is best-effort by design and a
// missed object must never fail or re-run the whole batch.
func (p *TaskProcessor) HandleImageCleanupTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image cleanup payload: %w", err)
	}

	for _, key := range payload.Keys {
		if err := p.store.Delete(ctx, key); err != nil {
			log.Printf("WARN: failed to delete orphaned image %s (ref %s): %v", key, payload.Ref, err)
		}
	}
	return nil
}

// SetupServer configures and returns an asynq server for background work.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"default": 3,
				"low":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeImageCleanup, processor.HandleImageCleanupTask)

	return srv, mux
}
