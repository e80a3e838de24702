package adjust

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-tarif/internal/queue"
)

// TaskKindDriftVerify is the queue kind for post-apply drift verification.
const TaskKindDriftVerify = "drift:verify"

type driftVerifyPayload struct {
	OrgID   uuid.UUID `json:"orgId"`
	EventID uuid.UUID `json:"eventId"`
}

// QueueEnqueuer adapts the Redis queue to the service's TaskEnqueuer.
type QueueEnqueuer struct {
	Queue queue.Enqueuer
}

// EnqueueDriftVerify schedules one verification run, deduplicated per event.
func (q QueueEnqueuer) EnqueueDriftVerify(ctx context.Context, orgID, eventID uuid.UUID) error {
	payload, err := json.Marshal(driftVerifyPayload{OrgID: orgID, EventID: eventID})
	if err != nil {
		return err
	}
	return q.Queue.Enqueue(ctx, queue.Task{
		Kind:           TaskKindDriftVerify,
		Payload:        payload,
		IdempotencyKey: eventID.String(),
	})
}

// VerifyWorker handles drift verification tasks pulled off the queue.
type VerifyWorker struct {
	Service *Service
}

// Handle decodes the task payload and runs the verification.
func (w VerifyWorker) Handle(ctx context.Context, task queue.Task) error {
	if w.Service == nil {
		return fmt.Errorf("adjust: verify worker service not configured")
	}
	var payload driftVerifyPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("adjust: decode verify payload: %w", err)
	}
	_, err := w.Service.VerifyDrift(ctx, payload.OrgID)
	return err
}
