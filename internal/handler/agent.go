package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ekurt/tour-operator-core/internal/ledger"
	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
	"github.com/ekurt/tour-operator-core/internal/queue"
	"github.com/ekurt/tour-operator-core/internal/repository"
	queuepublisher "github.com/ekurt/tour-operator-core/internal/service"
)

// AgentHandler exposes agent accounts and their running-balance ledger.
// Every balance-affecting write runs in one transaction that locks the
// agent row first, so the stored running balances are always a correct
// prefix sum even under concurrent writers.
type AgentHandler struct {
	AgentRepo *repository.AgentRepo
}

// NewAgentHandler constructs an AgentHandler.  The repository must be
// non-nil.
func NewAgentHandler(agentRepo *repository.AgentRepo) *AgentHandler {
	if agentRepo == nil {
		panic("nil repository passed to NewAgentHandler")
	}
	return &AgentHandler{AgentRepo: agentRepo}
}

// CreateAgent handles POST /v1/agents.
func (h *AgentHandler) CreateAgent(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Name           string `json:"name"`
		Email          string `json:"email"`
		CompanyName    string `json:"company_name"`
		CommissionRate string `json:"commission_rate"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	a, err := h.AgentRepo.Create(c.Request().Context(), org, &model.Agent{
		Name:           body.Name,
		Email:          body.Email,
		CompanyName:    body.CompanyName,
		CommissionRate: body.CommissionRate,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create agent"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": agentJSON(a)})
}

// ListAgents handles GET /v1/agents, pairing every agent with its current
// balance.
func (h *AgentHandler) ListAgents(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	agents, err := h.AgentRepo.List(ctx, org)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load agents"})
	}
	balances, err := h.AgentRepo.ListWithBalances(ctx, org)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load balances"})
	}
	byID := make(map[uint64]money.Money, len(balances))
	for _, b := range balances {
		byID[b.AgentID] = b.Balance
	}
	items := make([]echo.Map, 0, len(agents))
	for i := range agents {
		m := agentJSON(&agents[i])
		m["balance"] = byID[agents[i].ID]
		items = append(items, m)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetAgent handles GET /v1/agents/:id.
func (h *AgentHandler) GetAgent(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid agent id"})
	}
	ctx := c.Request().Context()
	a, err := h.AgentRepo.GetByID(ctx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "agent not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load agent"})
	}
	entries, err := h.AgentRepo.ListTransactions(ctx, org, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load transactions"})
	}
	m := agentJSON(a)
	m["balance"] = currentBalance(entries)
	return c.JSON(http.StatusOK, echo.Map{"item": m})
}

// Summary handles GET /v1/agents/summary: agent counts and the total
// outstanding balance across the organization.
func (h *AgentHandler) Summary(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	balances, err := h.AgentRepo.ListWithBalances(c.Request().Context(), org)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load balances"})
	}
	return c.JSON(http.StatusOK, echo.Map{"summary": ledger.Summarize(balances)})
}

// ListTransactions handles GET /v1/agents/:id/transactions, the account
// statement in (date, insertion) order with running balances.
func (h *AgentHandler) ListTransactions(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid agent id"})
	}
	entries, err := h.AgentRepo.ListTransactions(c.Request().Context(), org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "agent not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load transactions"})
	}
	items := make([]echo.Map, 0, len(entries))
	for i := range entries {
		items = append(items, transactionJSON(&entries[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":   items,
		"balance": currentBalance(entries),
	})
}

type transactionBody struct {
	Type        string `json:"transaction_type"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Date        string `json:"transaction_date"`
}

// RecordTransaction handles POST /v1/agents/:id/transactions.  The write
// locks the agent row, reads the latest snapshot, signs the amount by
// type and appends the entry with its new running balance, all in one
// transaction.  A back-dated entry sorts mid-sequence, so last-plus-amount
// is wrong for it and stale for every later row; that case rebuilds all
// snapshots before committing.
func (h *AgentHandler) RecordTransaction(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	agentID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid agent id"})
	}
	var body transactionBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if !ledger.ValidTransactionType(ledger.TransactionType(body.Type)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_type must be charge, payment or adjustment"})
	}
	date, ok := parseDate(body.Date)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_date must be YYYY-MM-DD"})
	}
	if body.Currency == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency is required"})
	}
	amount, err := money.FromString(body.Amount, body.Currency)
	if err != nil || amount.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be a non-zero decimal"})
	}
	signed, err := ledger.SignedAmount(ledger.TransactionType(body.Type), amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx := c.Request().Context()
	tx, err := h.AgentRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.AgentRepo.LockAgentTx(ctx, tx, org, agentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "agent not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock agent"})
	}
	last, cur, latestDate, err := h.AgentRepo.LastBalanceTx(ctx, tx, agentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read balance"})
	}
	// one currency per account; the first entry fixes it
	if cur != "" && cur != body.Currency {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency differs from the agent account currency"})
	}

	entry := &model.AgentTransaction{
		AgentID:        agentID,
		Type:           body.Type,
		Amount:         signed,
		Currency:       body.Currency,
		RunningBalance: last.WithCurrency(body.Currency).Add(signed),
		Description:    body.Description,
		Date:           date,
	}
	if err := h.AgentRepo.InsertTransactionTx(ctx, tx, org, entry); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record transaction"})
	}
	if !latestDate.IsZero() && date.Before(latestDate) {
		if err := h.AgentRepo.RecomputeBalancesTx(ctx, tx, agentID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to recompute balances"})
		}
		reloaded, err := h.AgentRepo.GetTransactionTx(ctx, tx, org, entry.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reload transaction"})
		}
		entry = reloaded
	}
	committedAt := time.Now().UTC()
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	h.publishEvent(c, org, entry, "recorded", committedAt)
	return c.JSON(http.StatusCreated, echo.Map{"item": transactionJSON(entry)})
}

type transactionPatchBody struct {
	Type        *string `json:"transaction_type"`
	Amount      *string `json:"amount"`
	Description *string `json:"description"`
	Date        *string `json:"transaction_date"`
}

// UpdateTransaction handles PUT /v1/agent-transactions/:id, the correcting
// edit.  The account is locked, the entry rewritten and every running
// balance recomputed over the reordered sequence in the same transaction.
func (h *AgentHandler) UpdateTransaction(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	var body transactionPatchBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Type == nil && body.Amount == nil && body.Description == nil && body.Date == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	ctx := c.Request().Context()
	tx, err := h.AgentRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	entry, err := h.AgentRepo.GetTransactionTx(ctx, tx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load transaction"})
	}
	if err := h.AgentRepo.LockAgentTx(ctx, tx, org, entry.AgentID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock agent"})
	}

	if body.Type != nil {
		if !ledger.ValidTransactionType(ledger.TransactionType(*body.Type)) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_type must be charge, payment or adjustment"})
		}
		entry.Type = *body.Type
	}
	if body.Amount != nil {
		amount, err := money.FromString(*body.Amount, entry.Currency)
		if err != nil || amount.IsZero() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be a non-zero decimal"})
		}
		signed, err := ledger.SignedAmount(ledger.TransactionType(entry.Type), amount)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		entry.Amount = signed
	} else if body.Type != nil {
		// type change alone re-signs the existing magnitude
		signed, err := ledger.SignedAmount(ledger.TransactionType(entry.Type), entry.Amount.Abs())
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		entry.Amount = signed
	}
	if body.Description != nil {
		entry.Description = *body.Description
	}
	if body.Date != nil {
		date, ok := parseDate(*body.Date)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_date must be YYYY-MM-DD"})
		}
		entry.Date = date
	}

	if err := h.AgentRepo.UpdateTransactionTx(ctx, tx, org, entry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update transaction"})
	}
	if err := h.AgentRepo.RecomputeBalancesTx(ctx, tx, entry.AgentID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to recompute balances"})
	}
	reloaded, err := h.AgentRepo.GetTransactionTx(ctx, tx, org, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reload transaction"})
	}
	committedAt := time.Now().UTC()
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	h.publishEvent(c, org, reloaded, "corrected", committedAt)
	return c.JSON(http.StatusOK, echo.Map{"item": transactionJSON(reloaded)})
}

// DeleteTransaction handles DELETE /v1/agent-transactions/:id.  Removal is
// a correction too: the remaining sequence is refolded so every later
// snapshot is rebuilt in the same transaction.
func (h *AgentHandler) DeleteTransaction(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	ctx := c.Request().Context()
	tx, err := h.AgentRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	entry, err := h.AgentRepo.GetTransactionTx(ctx, tx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load transaction"})
	}
	if err := h.AgentRepo.LockAgentTx(ctx, tx, org, entry.AgentID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock agent"})
	}
	if err := h.AgentRepo.DeleteTransactionTx(ctx, tx, org, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete transaction"})
	}
	if err := h.AgentRepo.RecomputeBalancesTx(ctx, tx, entry.AgentID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to recompute balances"})
	}
	committedAt := time.Now().UTC()
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	h.publishEvent(c, org, entry, "deleted", committedAt)
	return c.NoContent(http.StatusNoContent)
}

// publishEvent emits the agent transaction audit event.  Broker failures
// are logged inside the publisher and ignored: the committed write wins.
func (h *AgentHandler) publishEvent(c echo.Context, org model.OrgContext, t *model.AgentTransaction, action string, at time.Time) {
	agent, err := h.AgentRepo.GetByID(c.Request().Context(), org, t.AgentID)
	name := ""
	if err == nil {
		name = agent.Name
	}
	_ = queuepublisher.PublishAgentTransaction(c.Request().Context(), queue.AgentTransactionEvent{
		TransactionID: t.ID,
		AgentID:       t.AgentID,
		AgentName:     name,
		OrgID:         org.OrgID,
		Type:          t.Type,
		Amount:        t.Amount.Amount().String(),
		Currency:      t.Currency,
		Balance:       t.RunningBalance.Amount().String(),
		Action:        action,
		OccurredAt:    at.Format(time.RFC3339),
	})
}

func currentBalance(entries []model.AgentTransaction) money.Money {
	if len(entries) == 0 {
		return money.Money{}
	}
	return entries[len(entries)-1].RunningBalance
}

func agentJSON(a *model.Agent) echo.Map {
	return echo.Map{
		"id":              a.ID,
		"name":            a.Name,
		"email":           a.Email,
		"company_name":    a.CompanyName,
		"commission_rate": a.CommissionRate,
		"created_at":      a.CreatedAt.Format(time.RFC3339),
	}
}

func transactionJSON(t *model.AgentTransaction) echo.Map {
	return echo.Map{
		"id":               t.ID,
		"agent_id":         t.AgentID,
		"transaction_type": t.Type,
		"amount":           t.Amount,
		"currency":         t.Currency,
		"running_balance":  t.RunningBalance,
		"description":      t.Description,
		"transaction_date": t.Date.Format("2006-01-02"),
	}
}
