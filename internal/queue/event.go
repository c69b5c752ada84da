// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into the finance audit log.
package queue

// Queue names double as routing keys on the default exchange.
const (
	PaymentRecordedQueue  = "finance.payment.recorded"
	InvoicePaidQueue      = "finance.invoice.paid"
	AgentTransactionQueue = "finance.agent.transaction"
)

// PaymentRecordedEvent is published after a payment (or refund, when the
// amount is negative) is committed against an invoice.  It carries enough
// for downstream consumers to log or notify without querying the primary
// database.
type PaymentRecordedEvent struct {
	PaymentID     uint64 `json:"payment_id"`
	InvoiceID     uint64 `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	OrgID         uint64 `json:"organization_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Method        string `json:"payment_method"`
	BalanceDue    string `json:"balance_due"`
	Status        string `json:"status"`
	RecordedAt    string `json:"recorded_at"`
}

// InvoicePaidEvent is published when a payment settles the full invoice
// amount, i.e. the derived status became paid.
type InvoicePaidEvent struct {
	InvoiceID     uint64 `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	OrgID         uint64 `json:"organization_id"`
	CustomerName  string `json:"customer_name"`
	Total         string `json:"total_amount"`
	Currency      string `json:"currency"`
	PaidAt        string `json:"paid_at"`
}

// AgentTransactionEvent is published after an agent account entry is
// committed, including correcting edits and deletes.
type AgentTransactionEvent struct {
	TransactionID uint64 `json:"transaction_id"`
	AgentID       uint64 `json:"agent_id"`
	AgentName     string `json:"agent_name"`
	OrgID         uint64 `json:"organization_id"`
	Type          string `json:"transaction_type"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Balance       string `json:"running_balance"`
	Action        string `json:"action"` // recorded, corrected, deleted
	OccurredAt    string `json:"occurred_at"`
}
