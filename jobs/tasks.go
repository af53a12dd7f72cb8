package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGenerateICJE generates intercompany journals for vendor bills.
	TaskGenerateICJE = "icje:generate"

	generateMaxRetry = 3
)

var payloadValidator = validator.New()

// GenerateICJEPayload names the bills a generation run covers.
type GenerateICJEPayload struct {
	BillIDs []int64 `json:"bill_ids" validate:"required,min=1,dive,gt=0"`
	Event   string  `json:"event,omitempty" validate:"omitempty,oneof=create edit"`
}

// Validate checks the payload shape.
func (p GenerateICJEPayload) Validate() error {
	if err := payloadValidator.Struct(p); err != nil {
		return fmt.Errorf("icje payload: %w", err)
	}
	return nil
}

// NewGenerateICJETask constructs an Asynq task for the given bills.
func NewGenerateICJETask(payload GenerateICJEPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGenerateICJE, data), nil
}

func decodeGenerateICJE(t *asynq.Task) (GenerateICJEPayload, error) {
	var payload GenerateICJEPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return GenerateICJEPayload{}, err
	}
	return payload, payload.Validate()
}
