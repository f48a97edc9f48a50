package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventEnvelope represents the shared envelope for v1 contracts.
type EventEnvelope struct {
	EventName     string          `json:"eventName"`
	EventVersion  int             `json:"eventVersion"`
	EventID       string          `json:"eventId"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CausationID   string          `json:"causationId,omitempty"`
	Producer      string          `json:"producer"`
	PartitionKey  string          `json:"partitionKey"`
	Sequence      int64           `json:"sequence,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Schema        string          `json:"schema"`
	Payload       json.RawMessage `json:"payload"`
}

func (e EventEnvelope) Validate(expectedName string, expectedVersion int) error {
	if e.EventName != expectedName {
		return fmt.Errorf("unexpected eventName %q", e.EventName)
	}
	if e.EventVersion != expectedVersion {
		return fmt.Errorf("unexpected eventVersion %d", e.EventVersion)
	}
	if e.PartitionKey == "" {
		return fmt.Errorf("missing partitionKey")
	}
	if e.EventID == "" {
		return fmt.Errorf("missing eventId")
	}
	return nil
}

// parseEnvelope decodes body as an envelope. ok is false for a bare payload
// published without one.
func parseEnvelope(body []byte) (env EventEnvelope, ok bool, err error) {
	if err := json.Unmarshal(body, &env); err != nil {
		return EventEnvelope{}, false, err
	}
	if env.EventName == "" && len(env.Payload) == 0 {
		return EventEnvelope{}, false, nil
	}
	return env, true, nil
}

// EventMeta carries correlation data from an incoming event to the events it causes.
type EventMeta struct {
	CorrelationID string
	CausationID   string
}

type metaKey struct{}

func WithMeta(ctx context.Context, meta EventMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

func metaFrom(ctx context.Context) EventMeta {
	meta, _ := ctx.Value(metaKey{}).(EventMeta)
	return meta
}
