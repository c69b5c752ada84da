// Package ledger holds the pure balance arithmetic for agent accounts and
// invoices.  Persistence and locking live in the repository layer; this
// package only folds ordered sequences into balances and derives statuses.
package ledger

import (
	"fmt"
	"time"

	"github.com/ekurt/tour-operator-core/internal/money"
)

// TransactionType classifies an agent account entry.
type TransactionType string

const (
	// TypeCharge increases what the agent owes, e.g. a booking attributed
	// to the agent.
	TypeCharge TransactionType = "charge"
	// TypePayment decreases what the agent owes.
	TypePayment TransactionType = "payment"
	// TypeAdjustment moves the balance either way; the caller's sign is
	// kept as-is (commission corrections go both directions).
	TypeAdjustment TransactionType = "adjustment"
)

// ValidTransactionType reports whether t is a known entry type.
func ValidTransactionType(t TransactionType) bool {
	return t == TypeCharge || t == TypePayment || t == TypeAdjustment
}

// SignedAmount normalizes a submitted amount by entry type: charges are
// stored positive, payments negative, adjustments keep their sign.  Clients
// send magnitudes for charges and payments, so the absolute value is taken
// before signing.
func SignedAmount(t TransactionType, amount money.Money) (money.Money, error) {
	switch t {
	case TypeCharge:
		return amount.Abs(), nil
	case TypePayment:
		return amount.Abs().Neg(), nil
	case TypeAdjustment:
		return amount, nil
	default:
		return money.Money{}, fmt.Errorf("unknown transaction type %q", t)
	}
}

// Entry is one account line in (date, insertion) order.  Date alone is not
// a total order; the insertion id breaks same-date ties.
type Entry struct {
	ID             uint64
	Type           TransactionType
	Amount         money.Money // signed
	Date           time.Time
	RunningBalance money.Money // derived, filled by RunningBalances
}

// RunningBalances folds an already-ordered sequence, setting each entry's
// running balance to the sum of all signed amounts up to and including it.
// It is also the recompute path after a correcting edit or delete: callers
// rerun it over the full remaining sequence so every subsequent snapshot is
// rebuilt, not just the edited row.
func RunningBalances(entries []Entry) []Entry {
	var balance money.Money
	for i := range entries {
		balance = balance.Add(entries[i].Amount)
		entries[i].RunningBalance = balance
	}
	return entries
}

// CurrentBalance is the final running balance of an ordered sequence, zero
// for an empty account.
func CurrentBalance(entries []Entry) money.Money {
	if len(entries) == 0 {
		return money.Money{}
	}
	return money.Sum(amounts(entries))
}

func amounts(entries []Entry) []money.Money {
	out := make([]money.Money, len(entries))
	for i, e := range entries {
		out[i] = e.Amount
	}
	return out
}

// AgentBalance pairs an agent with its current balance for org summaries.
type AgentBalance struct {
	AgentID uint64
	Name    string
	Balance money.Money
}

// Summary is the organization-level reduction over all agent balances.
type Summary struct {
	TotalAgents       int         `json:"total_agents"`
	AgentsWithBalance int         `json:"agents_with_balance"`
	AgentsOwing       int         `json:"agents_owing"`
	TotalBalance      money.Money `json:"total_balance"`
}

// Summarize reduces per-agent balances into the dashboard summary: how many
// agents exist, how many carry a non-zero balance, how many owe money
// (positive balance), and the sum of all balances.
func Summarize(balances []AgentBalance) Summary {
	s := Summary{TotalAgents: len(balances)}
	for _, b := range balances {
		s.TotalBalance = s.TotalBalance.Add(b.Balance)
		if !b.Balance.IsZero() {
			s.AgentsWithBalance++
		}
		if b.Balance.IsPositive() {
			s.AgentsOwing++
		}
	}
	return s
}
