// Package views projects the transaction list into what each screen shows.
package views

import (
	"gestao/internal/core"
)

// DefaultRecentLimit is how many transactions the dashboard lists.
const DefaultRecentLimit = 5

// EmptyHistoryMessage is shown when there are no transactions.
const EmptyHistoryMessage = "Nenhuma transação registrada."

// TransactionRow is a transaction formatted for a list.
type TransactionRow struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Subtitle    string `json:"subtitle"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

type Dashboard struct {
	Balance string           `json:"balance"`
	Income  string           `json:"income"`
	Expense string           `json:"expense"`
	Recent  []TransactionRow `json:"recent"`
}

type History struct {
	Rows         []TransactionRow `json:"rows"`
	Empty        bool             `json:"empty"`
	EmptyMessage string           `json:"empty_message,omitempty"`
}

// FormatCurrency renders m as "R$ 12.50". Negative balances keep the sign.
func FormatCurrency(m core.Money) string {
	return "R$ " + m.String()
}

// NewRow formats t as "<sign> R$ <amount>" with "<category> - <date>".
func NewRow(t core.Transaction) TransactionRow {
	return TransactionRow{
		ID:          t.ID,
		Description: t.Description,
		Amount:      t.Kind.Sign() + " " + FormatCurrency(t.Amount),
		Subtitle:    t.Category + " - " + t.Date,
		Kind:        string(t.Kind),
		Category:    t.Category,
		Date:        t.Date,
	}
}

func rows(txs []core.Transaction) []TransactionRow {
	out := make([]TransactionRow, 0, len(txs))
	for _, t := range txs {
		out = append(out, NewRow(t))
	}
	return out
}

// NewDashboard summarizes txs, which must be newest-first, and lists the
// first n of them.
func NewDashboard(txs []core.Transaction, n int) Dashboard {
	sum := core.Summarize(txs)
	return Dashboard{
		Balance: FormatCurrency(sum.Balance),
		Income:  FormatCurrency(sum.Income),
		Expense: FormatCurrency(sum.Expense),
		Recent:  rows(core.Recent(txs, n)),
	}
}

// NewHistory lists every transaction, newest-first.
func NewHistory(txs []core.Transaction) History {
	if len(txs) == 0 {
		return History{Rows: []TransactionRow{}, Empty: true, EmptyMessage: EmptyHistoryMessage}
	}
	return History{Rows: rows(txs)}
}
