package services

import (
	"testing"
	"time"

	"ledger/internal/core"
)

func TestTransactionDetails(t *testing.T) {
	date := time.Date(2024, 5, 17, 8, 5, 0, 0, time.UTC)
	food := &core.Category{ID: 1, Name: "Food"}

	tests := []struct {
		name      string
		tx        core.Transaction
		wantShort string
		wantLong  string
	}{
		{
			name:      "categorized",
			tx:        core.Transaction{Amount: core.Money{Cents: -1250}, Date: date, Description: "lunch", Category: food},
			wantShort: "Amount: -12.50\nCategory: Food",
			wantLong:  "Amount: -12.50\nDate: 2024-05-17 08:05:00\nDescription: lunch\nCategory: Food\n",
		},
		{
			name:      "system operation",
			tx:        core.Transaction{Amount: core.Money{Cents: 3000}, Date: date, Description: core.CorrectionDescription},
			wantShort: "Amount: 30.00\nCategory: System operation",
			wantLong:  "Amount: 30.00\nDate: 2024-05-17 08:05:00\nDescription: Correction\n",
		},
		{
			name:      "empty description",
			tx:        core.Transaction{Date: date, Category: food},
			wantShort: "Amount: 0.00\nCategory: Food",
			wantLong:  "Amount: 0.00\nDate: 2024-05-17 08:05:00\nDescription: \nCategory: Food\n",
		},
	}

	var details TransactionDetails
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := details.Short(tt.tx); got != tt.wantShort {
				t.Errorf("Short() = %q, want %q", got, tt.wantShort)
			}
			if got := details.Long(tt.tx); got != tt.wantLong {
				t.Errorf("Long() = %q, want %q", got, tt.wantLong)
			}
		})
	}
}

func TestDefaultUserConfig(t *testing.T) {
	cfg := DefaultUserConfig()

	if cfg.BcryptCost != 10 {
		t.Errorf("expected BcryptCost 10, got %d", cfg.BcryptCost)
	}
	if len(cfg.DefaultCategories) != 3 {
		t.Errorf("expected 3 default categories, got %v", cfg.DefaultCategories)
	}
}
