package enums

// OutboxAggregateType is outbox_events.aggregate_type.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateProduct OutboxAggregateType = "product"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateProduct}

func (a OutboxAggregateType) IsValid() bool { return known(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, "aggregate type", aggregateTypes)
}

// OutboxEventType is outbox_events.event_type and the envelope's event_type.
type OutboxEventType string

const (
	EventOrderPaid      OutboxEventType = "order_paid"
	EventProductSoldOut OutboxEventType = "product_sold_out"
)

var eventTypes = []OutboxEventType{EventOrderPaid, EventProductSoldOut}

func (e OutboxEventType) IsValid() bool { return known(e, eventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, "event type", eventTypes)
}

// OutboxDLQErrorReason records why an event left the outbox for outbox_dlq.
type OutboxDLQErrorReason string

const (
	// unknown event type, or a payload that no longer decodes
	OutboxDLQReasonUndecodable OutboxDLQErrorReason = "undecodable"
	// the broker rejected the message permanently
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)

// Retryable reports whether replaying from the DLQ could succeed without a code change.
func (r OutboxDLQErrorReason) Retryable() bool {
	return r == OutboxDLQReasonMaxAttempts
}
