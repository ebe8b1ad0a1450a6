package core

// Summary is the aggregate shown on the dashboard.
type Summary struct {
	Income  Money
	Expense Money
	Balance Money
}

// TotalIncome sums the amounts of every INCOME transaction.
func TotalIncome(txs []Transaction) Money {
	return sumKind(txs, Income)
}

// TotalExpense sums the amounts of every EXPENSE transaction.
func TotalExpense(txs []Transaction) Money {
	return sumKind(txs, Expense)
}

// Balance is TotalIncome minus TotalExpense.
func Balance(txs []Transaction) Money {
	return TotalIncome(txs).Sub(TotalExpense(txs))
}

// Summarize computes all three aggregates in a single pass.
func Summarize(txs []Transaction) Summary {
	var s Summary
	for _, t := range txs {
		switch t.Kind {
		case Income:
			s.Income = s.Income.Add(t.Amount)
		case Expense:
			s.Expense = s.Expense.Add(t.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)
	return s
}

// Recent returns the first n transactions of txs, which is expected to be
// newest-first already. The result never aliases txs.
func Recent(txs []Transaction, n int) []Transaction {
	if n <= 0 || len(txs) == 0 {
		return []Transaction{}
	}
	if n > len(txs) {
		n = len(txs)
	}
	out := make([]Transaction, n)
	copy(out, txs[:n])
	return out
}

// Reversed returns a reversed copy of txs.
func Reversed(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	for i, t := range txs {
		out[len(txs)-1-i] = t
	}
	return out
}

func sumKind(txs []Transaction, k Kind) Money {
	var total Money
	for _, t := range txs {
		if t.Kind == k {
			total = total.Add(t.Amount)
		}
	}
	return total
}
