package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/scoutledger/backend/pkg/config"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	"github.com/scoutledger/backend/pkg/outbox"
	"github.com/scoutledger/backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names. Lifecycle
// events go to the rewards topic, operator alerts to the alerts topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.RewardsTopic == "" {
		return nil, fmt.Errorf("rewards topic is required")
	}
	if cfg.AlertsTopic == "" {
		return nil, fmt.Errorf("alerts topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	rewardsTopic := cfg.RewardsTopic
	alertsTopic := cfg.AlertsTopic

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventWeeklyClaimPublished,
			AggregateType:  enums.AggregateWeeklyClaim,
			Topic:          rewardsTopic,
			PayloadFactory: func() interface{} { return &payloads.WeeklyClaimPublishedEvent{} },
		},
		{
			EventType:      enums.EventWeeklyRewardsDistributed,
			AggregateType:  enums.AggregateSeasonWeek,
			Topic:          rewardsTopic,
			PayloadFactory: func() interface{} { return &payloads.WeeklyRewardsDistributedEvent{} },
		},
		{
			EventType:      enums.EventScoutMerged,
			AggregateType:  enums.AggregateScout,
			Topic:          rewardsTopic,
			PayloadFactory: func() interface{} { return &payloads.ScoutMergedEvent{} },
		},
		{
			EventType:      enums.EventClaimConfirmed,
			AggregateType:  enums.AggregateClaimSubmission,
			Topic:          rewardsTopic,
			PayloadFactory: func() interface{} { return &payloads.ClaimConfirmedEvent{} },
		},
	} {
		reg.register(desc)
	}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventWeeklyPayoutBlocked,
			AggregateType:  enums.AggregateSeasonWeek,
			Topic:          alertsTopic,
			PayloadFactory: func() interface{} { return &payloads.WeeklyPayoutBlockedEvent{} },
		},
		{
			EventType:      enums.EventClaimReconciliationMismatch,
			AggregateType:  enums.AggregateClaimSubmission,
			Topic:          alertsTopic,
			PayloadFactory: func() interface{} { return &payloads.ClaimReconciliationMismatchEvent{} },
		},
		{
			EventType:      enums.EventClaimConfirmationExpired,
			AggregateType:  enums.AggregateClaimSubmission,
			Topic:          alertsTopic,
			PayloadFactory: func() interface{} { return &payloads.ClaimConfirmationExpiredEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
