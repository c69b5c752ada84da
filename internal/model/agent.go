package model

import (
	"time"

	"github.com/ekurt/tour-operator-core/internal/money"
)

// Agent is a sales partner whose bookings and payments accrue on a running
// account.  A positive balance means the agent owes the operator.
//
// Fields:
//
//	ID             – primary key identifier.
//	OrgID          – owning organization.
//	Name           – agent or agency display name.
//	Email          – contact address.
//	CompanyName    – optional legal entity name.
//	CommissionRate – percentage applied when attributing bookings.
//	CreatedAt      – creation timestamp.
type Agent struct {
	ID             uint64    // agents.id
	OrgID          uint64    // agents.organization_id
	Name           string    // agents.name
	Email          string    // agents.email
	CompanyName    string    // agents.company_name
	CommissionRate string    // agents.commission_rate (decimal percent)
	CreatedAt      time.Time // agents.created_at
}

// AgentTransaction is one append-only entry on an agent's account.  Amount
// is stored signed (charges positive, payments negative) and
// RunningBalance snapshots the cumulative sum up to and including this
// entry, ordered by (transaction_date, id).
//
// Fields:
//
//	ID             – primary key identifier.
//	OrgID          – owning organization.
//	AgentID        – account the entry belongs to.
//	Type           – charge, payment or adjustment.
//	Amount         – signed amount in Currency.
//	Currency       – ISO currency code.
//	RunningBalance – derived cumulative balance, persisted for fast reads.
//	Description    – free-text note shown on statements.
//	Date           – business date of the transaction.
//	CreatedAt      – insertion timestamp; the same-date tie-break via id.
type AgentTransaction struct {
	ID             uint64      // agent_transactions.id
	OrgID          uint64      // agent_transactions.organization_id
	AgentID        uint64      // agent_transactions.agent_id
	Type           string      // agent_transactions.transaction_type
	Amount         money.Money // agent_transactions.amount (signed)
	Currency       string      // agent_transactions.currency
	RunningBalance money.Money // agent_transactions.running_balance
	Description    string      // agent_transactions.description
	Date           time.Time   // agent_transactions.transaction_date
	CreatedAt      time.Time   // agent_transactions.created_at
}
