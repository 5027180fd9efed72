package interfaces

import (
	"context"

	"github.com/hibiken/asynq"
)

// TaskHandler handles one asynq-dispatched task. Grounded on the teacher's
// internal/types/interfaces/task_handler.go; here it is the execution-side
// of the Initiator's claim protocol (spec.md §4.K step 5 "run the job body
// outside any transaction").
type TaskHandler interface {
	Handle(ctx context.Context, t *asynq.Task) error
}
