package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"teamledger/internal/core"
)

// OperationCreatedMessage announces a newly stored operation.
type OperationCreatedMessage struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Team          *string         `json:"team"`
	Date          time.Time       `json:"date"`
	Revenue       decimal.Decimal `json:"revenue"`
	Profit        decimal.Decimal `json:"profit"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewOperationCreatedMessage builds the event for op.
func NewOperationCreatedMessage(op core.Operation) *OperationCreatedMessage {
	return &OperationCreatedMessage{
		ID:            op.ID,
		InvoiceNumber: op.InvoiceNumber,
		Team:          op.Team,
		Date:          op.Date,
		Revenue:       op.Revenue,
		Profit:        op.Profit,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *OperationCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OperationCreatedMessageFromJSON decodes a message body.
func OperationCreatedMessageFromJSON(data []byte) (*OperationCreatedMessage, error) {
	var msg OperationCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
