package ledger

import (
	"sort"
	"testing"
	"time"

	"github.com/ekurt/tour-operator-core/internal/money"
)

func eur(s string) money.Money { return money.MustParse(s, "EUR") }

func TestSignedAmount(t *testing.T) {
	cases := []struct {
		typ  TransactionType
		in   string
		want string
	}{
		{TypeCharge, "500", "500"},
		{TypeCharge, "-500", "500"}, // magnitude, sign comes from the type
		{TypePayment, "200", "-200"},
		{TypePayment, "-200", "-200"},
		{TypeAdjustment, "50", "50"}, // adjustments keep the caller's sign
		{TypeAdjustment, "-50", "-50"},
	}
	for _, c := range cases {
		got, err := SignedAmount(c.typ, eur(c.in))
		if err != nil {
			t.Fatalf("SignedAmount(%s, %s): %v", c.typ, c.in, err)
		}
		if got.Amount().String() != c.want {
			t.Errorf("SignedAmount(%s, %s) = %s, want %s", c.typ, c.in, got.Amount(), c.want)
		}
	}
	if _, err := SignedAmount("bonus", eur("1")); err == nil {
		t.Error("unknown type must fail")
	}
}

func TestRunningBalancesWorkedScenario(t *testing.T) {
	// charge +500, payment -200, adjustment +50 -> 500, 300, 350
	entries := RunningBalances([]Entry{
		{ID: 1, Type: TypeCharge, Amount: eur("500")},
		{ID: 2, Type: TypePayment, Amount: eur("-200")},
		{ID: 3, Type: TypeAdjustment, Amount: eur("50")},
	})
	want := []string{"500", "300", "350"}
	for i, w := range want {
		if got := entries[i].RunningBalance.Amount().String(); got != w {
			t.Errorf("running_balance[%d] = %s, want %s", i, got, w)
		}
	}
	if got := CurrentBalance(entries).Amount().String(); got != "350" {
		t.Errorf("CurrentBalance = %s, want 350", got)
	}
}

func TestRunningBalanceEqualsPrefixSum(t *testing.T) {
	entries := []Entry{
		{Amount: eur("120.50")},
		{Amount: eur("-40.25")},
		{Amount: eur("3.33")},
		{Amount: eur("-83.58")},
		{Amount: eur("0.01")},
	}
	RunningBalances(entries)
	var sum money.Money
	for i, e := range entries {
		sum = sum.Add(e.Amount)
		if !e.RunningBalance.Equal(sum) {
			t.Errorf("running_balance[%d] = %s, want prefix sum %s", i, e.RunningBalance.Amount(), sum.Amount())
		}
	}
}

func TestCorrectionRecomputesSubsequentBalances(t *testing.T) {
	entries := []Entry{
		{ID: 1, Amount: eur("500")},
		{ID: 2, Amount: eur("-200")},
		{ID: 3, Amount: eur("50")},
	}
	RunningBalances(entries)

	// correcting the middle entry must rebuild everything after it
	entries[1].Amount = eur("-300")
	RunningBalances(entries)
	want := []string{"500", "200", "250"}
	for i, w := range want {
		if got := entries[i].RunningBalance.Amount().String(); got != w {
			t.Errorf("after correction running_balance[%d] = %s, want %s", i, got, w)
		}
	}

	// deleting an entry likewise
	remaining := append(entries[:1], entries[2:]...)
	RunningBalances(remaining)
	if got := remaining[1].RunningBalance.Amount().String(); got != "550" {
		t.Errorf("after delete running_balance[1] = %s, want 550", got)
	}
}

func TestBackDatedEntryRebuildsAllBalances(t *testing.T) {
	// a charge on Jan 10, then a payment recorded later but dated Jan 1:
	// the payment sorts first in statement order, so last-plus-amount
	// snapshots (500 then 300) are both wrong
	entries := []Entry{
		{ID: 1, Type: TypeCharge, Date: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), Amount: eur("500")},
		{ID: 2, Type: TypePayment, Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Amount: eur("-200")},
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
	RunningBalances(entries)

	if entries[0].ID != 2 {
		t.Fatalf("statement order puts entry %d first, want the back-dated payment", entries[0].ID)
	}
	if got := entries[0].RunningBalance.Amount().String(); got != "-200" {
		t.Errorf("running_balance of the back-dated payment = %s, want -200", got)
	}
	if got := entries[1].RunningBalance.Amount().String(); got != "300" {
		t.Errorf("running_balance of the later charge = %s, want 300", got)
	}
	if got := CurrentBalance(entries).Amount().String(); got != "300" {
		t.Errorf("CurrentBalance = %s, want 300", got)
	}
}

func TestCurrentBalanceEmptyAccount(t *testing.T) {
	if !CurrentBalance(nil).IsZero() {
		t.Error("empty account must balance to zero")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]AgentBalance{
		{AgentID: 1, Balance: eur("350")},
		{AgentID: 2, Balance: eur("0")},
		{AgentID: 3, Balance: eur("-120")},
		{AgentID: 4, Balance: eur("75.50")},
	})
	if s.TotalAgents != 4 {
		t.Errorf("TotalAgents = %d, want 4", s.TotalAgents)
	}
	if s.AgentsWithBalance != 3 {
		t.Errorf("AgentsWithBalance = %d, want 3", s.AgentsWithBalance)
	}
	if s.AgentsOwing != 2 {
		t.Errorf("AgentsOwing = %d, want 2", s.AgentsOwing)
	}
	if got := s.TotalBalance.Amount().String(); got != "305.5" {
		t.Errorf("TotalBalance = %s, want 305.5", got)
	}
}

func TestEntriesKeepInsertionOrderMeaning(t *testing.T) {
	// two same-date entries: the fold is order-sensitive, which is why the
	// repository orders by (transaction_date, id)
	d := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	entries := RunningBalances([]Entry{
		{ID: 1, Date: d, Amount: eur("100")},
		{ID: 2, Date: d, Amount: eur("-100")},
	})
	if got := entries[0].RunningBalance.Amount().String(); got != "100" {
		t.Errorf("running_balance[0] = %s, want 100", got)
	}
	if !entries[1].RunningBalance.IsZero() {
		t.Errorf("running_balance[1] = %s, want 0", entries[1].RunningBalance.Amount())
	}
}
