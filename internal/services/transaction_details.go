package services

import (
	"fmt"
	"strings"

	"ledger/internal/core"
)

// SystemOperationLabel stands in for the category of uncategorized transactions.
const SystemOperationLabel = "System operation"

const detailsDateLayout = "2006-01-02 15:04:05"

// TransactionDetails renders transactions as human-readable text.
type TransactionDetails struct{}

// Short gives the amount and category on two lines.
func (TransactionDetails) Short(t core.Transaction) string {
	category := SystemOperationLabel
	if t.Category != nil {
		category = t.Category.Name
	}
	return fmt.Sprintf("Amount: %s\nCategory: %s", t.Amount, category)
}

// Long adds date and description. The category line is omitted for system
// operations.
func (TransactionDetails) Long(t core.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Amount: %s\n", t.Amount)
	fmt.Fprintf(&b, "Date: %s\n", t.Date.Format(detailsDateLayout))
	fmt.Fprintf(&b, "Description: %s\n", t.Description)
	if t.Category != nil {
		fmt.Fprintf(&b, "Category: %s\n", t.Category.Name)
	}
	return b.String()
}
