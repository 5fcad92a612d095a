package orders

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Lifecycle events published to Kafka for downstream consumers. These are
// notifications only; the reserve/cancel work queue lives in internal/queue.
const (
	EventStockReserved = "StockReserved"
	EventStockRejected = "StockRejected"
	EventStockReleased = "StockReleased"
)

const (
	TopicStockReserved = "order.stock.reserved"
	TopicStockRejected = "order.stock.rejected"
	TopicStockReleased = "order.stock.released"
)

// Partition key = order id, so all events of one order keep their order.
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"` // order id
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer string, orderID int64, payload json.RawMessage) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       payload,
	}
}

// ---- payload types per event ----

type ItemQty struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type StockShortage struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}

type StockReservedPayload struct {
	OrderID int64     `json:"order_id"`
	Items   []ItemQty `json:"items"`
}

type StockRejectedPayload struct {
	OrderID   int64           `json:"order_id"`
	Reason    string          `json:"reason"` // e.g. OUT_OF_STOCK
	Shortages []StockShortage `json:"shortages,omitempty"`
}

type StockReleasedPayload struct {
	OrderID int64     `json:"order_id"`
	Items   []ItemQty `json:"items"`
}
