package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
)

// EnvelopeVersion is the layout Emit writes. Older versions stay decodable.
const EnvelopeVersion = 1

var ErrEmptyPayload = errors.New("envelope carries no data")

// Actor is the user whose action produced the event.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is stored in outbox_events.payload_json and published as the message body,
// so consumers can dedupe on EventID without reading attributes.
type PayloadEnvelope struct {
	Version     int                   `json:"version"`
	EventID     uuid.UUID             `json:"event_id"`
	EventType   enums.OutboxEventType `json:"event_type,omitempty"`
	AggregateID uuid.UUID             `json:"aggregate_id,omitempty"`
	OccurredAt  time.Time             `json:"occurred_at"`
	Actor       *Actor                `json:"actor,omitempty"`
	Data        json.RawMessage       `json:"data"`
}

// DecodeEnvelope parses a stored payload. Errors are permanent for the row.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	if envelope.EventID == uuid.Nil {
		return PayloadEnvelope{}, errors.New("envelope missing event_id")
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEmptyPayload
	}
	return envelope, nil
}
