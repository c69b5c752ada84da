package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ekurt/tour-operator-core/internal/ledger"
	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
)

// AgentRepo persists agents and their account transactions.  Every write
// that touches running balances locks the agent row first (SELECT ... FOR
// UPDATE), so concurrent writers on the same account serialize and the
// stored snapshots stay a correct prefix sum.
type AgentRepo struct {
	db *sql.DB
}

// NewAgentRepo returns a new AgentRepo bound to the given database.
func NewAgentRepo(db *sql.DB) *AgentRepo { return &AgentRepo{db: db} }

// DB exposes the underlying pool for handler-level transactions.
func (r *AgentRepo) DB() *sql.DB { return r.db }

// Create inserts an agent and returns the stored row.
func (r *AgentRepo) Create(ctx context.Context, org model.OrgContext, a *model.Agent) (*model.Agent, error) {
	const q = `INSERT INTO agents (organization_id, name, email, company_name, commission_rate)
	           VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, org.OrgID, a.Name, a.Email, a.CompanyName, a.CommissionRate)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, org, uint64(id))
}

// GetByID fetches one agent within the organization, or ErrNotFound.
func (r *AgentRepo) GetByID(ctx context.Context, org model.OrgContext, id uint64) (*model.Agent, error) {
	const q = `SELECT id, organization_id, name, email, company_name, commission_rate, created_at
	           FROM agents WHERE id = ? AND organization_id = ?`
	var a model.Agent
	err := r.db.QueryRowContext(ctx, q, id, org.OrgID).Scan(
		&a.ID, &a.OrgID, &a.Name, &a.Email, &a.CompanyName, &a.CommissionRate, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns all agents of the organization ordered by name.
func (r *AgentRepo) List(ctx context.Context, org model.OrgContext) ([]model.Agent, error) {
	const q = `SELECT id, organization_id, name, email, company_name, commission_rate, created_at
	           FROM agents WHERE organization_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, org.OrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Agent, 0)
	for rows.Next() {
		var a model.Agent
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Name, &a.Email, &a.CompanyName, &a.CommissionRate, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListWithBalances returns every agent paired with its current balance,
// summing signed amounts instead of trusting the latest snapshot so the
// dashboard stays right even mid-recompute.
func (r *AgentRepo) ListWithBalances(ctx context.Context, org model.OrgContext) ([]ledger.AgentBalance, error) {
	const q = `SELECT a.id, a.name, COALESCE(SUM(t.amount), 0)
	           FROM agents a
	           LEFT JOIN agent_transactions t ON t.agent_id = a.id
	           WHERE a.organization_id = ?
	           GROUP BY a.id, a.name
	           ORDER BY a.name`
	rows, err := r.db.QueryContext(ctx, q, org.OrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ledger.AgentBalance, 0)
	for rows.Next() {
		var b ledger.AgentBalance
		if err := rows.Scan(&b.AgentID, &b.Name, &b.Balance); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LockAgentTx takes the per-account write lock by selecting the agent row
// FOR UPDATE.  Every balance-affecting write starts with this call so two
// transactions can never interleave between reading the last snapshot and
// inserting the next one.  Returns ErrNotFound when the agent does not
// belong to the organization.
func (r *AgentRepo) LockAgentTx(ctx context.Context, tx *sql.Tx, org model.OrgContext, agentID uint64) error {
	var id uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM agents WHERE id = ? AND organization_id = ? FOR UPDATE`,
		agentID, org.OrgID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

// LastBalanceTx reads the most recent running balance and its date in
// (transaction_date, id) order, zero values for an empty account.  The date
// lets the caller detect a back-dated append, which lands mid-sequence and
// needs a full recompute instead of last-plus-amount.  Must run after
// LockAgentTx.
func (r *AgentRepo) LastBalanceTx(ctx context.Context, tx *sql.Tx, agentID uint64) (money.Money, string, time.Time, error) {
	const q = `SELECT running_balance, currency, transaction_date FROM agent_transactions
	           WHERE agent_id = ? ORDER BY transaction_date DESC, id DESC LIMIT 1`
	var balance money.Money
	var cur string
	var latest time.Time
	err := tx.QueryRowContext(ctx, q, agentID).Scan(&balance, &cur, &latest)
	if err == sql.ErrNoRows {
		return money.Money{}, "", time.Time{}, nil
	}
	if err != nil {
		return money.Money{}, "", time.Time{}, err
	}
	return balance.WithCurrency(cur), cur, latest.UTC(), nil
}

// InsertTransactionTx appends one entry with its precomputed running
// balance and fills the generated ID.  Must run after LockAgentTx.
func (r *AgentRepo) InsertTransactionTx(ctx context.Context, tx *sql.Tx, org model.OrgContext, t *model.AgentTransaction) error {
	const q = `INSERT INTO agent_transactions
	           (organization_id, agent_id, transaction_type, amount, currency, running_balance, description, transaction_date)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		org.OrgID, t.AgentID, t.Type, t.Amount, t.Currency, t.RunningBalance, t.Description, t.Date.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.OrgID = org.OrgID
	return nil
}

// UpdateTransactionTx rewrites a correcting edit's own columns.  The
// caller recomputes every snapshot afterwards via RecomputeBalancesTx; a
// correction invalidates all balances from the edited row onward, and it
// can also reorder the row when the date changes.
func (r *AgentRepo) UpdateTransactionTx(ctx context.Context, tx *sql.Tx, org model.OrgContext, t *model.AgentTransaction) error {
	const q = `UPDATE agent_transactions
	           SET transaction_type = ?, amount = ?, description = ?, transaction_date = ?
	           WHERE id = ? AND organization_id = ?`
	result, err := tx.ExecContext(ctx, q, t.Type, t.Amount, t.Description, t.Date.UTC(), t.ID, org.OrgID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var id uint64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM agent_transactions WHERE id = ? AND organization_id = ?`, t.ID, org.OrgID).Scan(&id)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// DeleteTransactionTx removes an entry; callers recompute balances next.
func (r *AgentRepo) DeleteTransactionTx(ctx context.Context, tx *sql.Tx, org model.OrgContext, id uint64) error {
	result, err := tx.ExecContext(ctx,
		`DELETE FROM agent_transactions WHERE id = ? AND organization_id = ?`, id, org.OrgID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTransactionTx reads one entry inside the correction transaction.
func (r *AgentRepo) GetTransactionTx(ctx context.Context, tx *sql.Tx, org model.OrgContext, id uint64) (*model.AgentTransaction, error) {
	const q = `SELECT id, organization_id, agent_id, transaction_type, amount, currency, running_balance,
	                  description, transaction_date, created_at
	           FROM agent_transactions WHERE id = ? AND organization_id = ?`
	var t model.AgentTransaction
	var amount, balance money.Money
	err := tx.QueryRowContext(ctx, q, id, org.OrgID).Scan(
		&t.ID, &t.OrgID, &t.AgentID, &t.Type, &amount, &t.Currency, &balance,
		&t.Description, &t.Date, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Amount = amount.WithCurrency(t.Currency)
	t.RunningBalance = balance.WithCurrency(t.Currency)
	return &t, nil
}

// RecomputeBalancesTx rereads the full account in (transaction_date, id)
// order, folds fresh running balances and writes back every row whose
// snapshot changed.  Must run after LockAgentTx in the same transaction as
// the correction that invalidated the snapshots.
func (r *AgentRepo) RecomputeBalancesTx(ctx context.Context, tx *sql.Tx, agentID uint64) error {
	const q = `SELECT id, transaction_type, amount, currency, running_balance, transaction_date
	           FROM agent_transactions WHERE agent_id = ?
	           ORDER BY transaction_date, id`
	rows, err := tx.QueryContext(ctx, q, agentID)
	if err != nil {
		return err
	}
	entries := make([]ledger.Entry, 0)
	stored := make([]money.Money, 0)
	for rows.Next() {
		var e ledger.Entry
		var typ, cur string
		var amount, balance money.Money
		if err := rows.Scan(&e.ID, &typ, &amount, &cur, &balance, &e.Date); err != nil {
			rows.Close()
			return err
		}
		e.Type = ledger.TransactionType(typ)
		e.Amount = amount.WithCurrency(cur)
		entries = append(entries, e)
		stored = append(stored, balance.WithCurrency(cur))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	entries = ledger.RunningBalances(entries)
	for i, e := range entries {
		if e.RunningBalance.Equal(stored[i]) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE agent_transactions SET running_balance = ? WHERE id = ?`,
			e.RunningBalance, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListTransactions returns an agent's statement in (transaction_date, id)
// order with the stored running balances.
func (r *AgentRepo) ListTransactions(ctx context.Context, org model.OrgContext, agentID uint64) ([]model.AgentTransaction, error) {
	if _, err := r.GetByID(ctx, org, agentID); err != nil {
		return nil, err
	}
	const q = `SELECT id, organization_id, agent_id, transaction_type, amount, currency, running_balance,
	                  description, transaction_date, created_at
	           FROM agent_transactions WHERE agent_id = ? AND organization_id = ?
	           ORDER BY transaction_date, id`
	rows, err := r.db.QueryContext(ctx, q, agentID, org.OrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.AgentTransaction, 0)
	for rows.Next() {
		var t model.AgentTransaction
		var amount, balance money.Money
		if err := rows.Scan(&t.ID, &t.OrgID, &t.AgentID, &t.Type, &amount, &t.Currency, &balance,
			&t.Description, &t.Date, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Amount = amount.WithCurrency(t.Currency)
		t.RunningBalance = balance.WithCurrency(t.Currency)
		out = append(out, t)
	}
	return out, rows.Err()
}
