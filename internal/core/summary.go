package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAverage is the mean transaction amount for one category of an account.
type CategoryAverage struct {
	Name    string
	Count   int
	Average Money
}

// AverageByCategory groups transactions by category name and returns the
// mean amount per group, highest average first. Uncategorized transactions
// are grouped under UncategorizedName. Ties keep first-seen order.
func AverageByCategory(txs []Transaction) []CategoryAverage {
	type bucket struct {
		sum   decimal.Decimal
		count int
	}
	buckets := map[string]*bucket{}
	var order []string
	for _, t := range txs {
		name := t.CategoryName()
		b, ok := buckets[name]
		if !ok {
			b = &bucket{}
			buckets[name] = b
			order = append(order, name)
		}
		b.sum = b.sum.Add(t.Amount.Decimal())
		b.count++
	}

	out := make([]CategoryAverage, 0, len(order))
	for _, name := range order {
		b := buckets[name]
		avg := b.sum.Div(decimal.NewFromInt(int64(b.count)))
		out = append(out, CategoryAverage{Name: name, Count: b.count, Average: FromDecimal(avg)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Average.Cents > out[j].Average.Cents
	})
	return out
}
