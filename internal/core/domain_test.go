package core

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestRuleError(t *testing.T) {
	err := Rule(ErrConflict, "Account %s exists", "Wallet")

	if err.Error() != "Account Wallet exists" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected rule error to unwrap to ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("rule error should not match another kind")
	}
	if !IsRule(fmt.Errorf("wrapped: %w", err)) {
		t.Fatalf("IsRule should see through wrapping")
	}
	if IsRule(errors.New("disk full")) {
		t.Fatalf("plain errors are not rule errors")
	}
}

func TestTransactionCategoryName(t *testing.T) {
	sys := Transaction{Amount: Money{Cents: 100}}
	if sys.CategoryName() != UncategorizedName || !sys.IsSystem() {
		t.Fatalf("uncategorized transaction should be a system operation")
	}
	food := Transaction{Category: &Category{ID: 1, Name: "Food"}}
	if food.CategoryName() != "Food" || food.IsSystem() {
		t.Fatalf("categorized transaction misreported")
	}
}

func TestAverageByCategory(t *testing.T) {
	food := &Category{ID: 1, Name: "Food"}
	fun := &Category{ID: 2, Name: "Fun"}
	txs := []Transaction{
		{Amount: Money{Cents: -1000}, Category: food},
		{Amount: Money{Cents: -2000}, Category: food},
		{Amount: Money{Cents: 5000}},
		{Amount: Money{Cents: -100}, Category: fun},
		{Amount: Money{Cents: 1}, Category: fun},
		{Amount: Money{Cents: 0}, Category: fun},
	}

	got := AverageByCategory(txs)
	if len(got) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(got))
	}
	want := []struct {
		name  string
		cents int64
		count int
	}{
		{UncategorizedName, 5000, 1},
		{"Fun", -33, 3},
		{"Food", -1500, 2},
	}
	for i, w := range want {
		if got[i].Name != w.name || got[i].Average.Cents != w.cents || got[i].Count != w.count {
			t.Fatalf("group %d: got %+v, want %+v", i, got[i], w)
		}
	}

	if len(AverageByCategory(nil)) != 0 {
		t.Fatalf("no transactions should yield no groups")
	}
}

func TestAverageByCategoryLargeSums(t *testing.T) {
	big := Money{Cents: math.MaxInt64 - 1}
	got := AverageByCategory([]Transaction{{Amount: big}, {Amount: big}})
	if len(got) != 1 || got[0].Average != big {
		t.Fatalf("expected average %d, got %+v", big.Cents, got)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw1", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "pw1" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !CheckPassword(hash, "pw1") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "pw2") {
		t.Fatalf("expected wrong password to fail")
	}
	if CheckPassword(hash, "") || CheckPassword("", "pw1") {
		t.Fatalf("empty inputs must never match")
	}
	if _, err := HashPassword("", 4); err == nil {
		t.Fatalf("expected error for empty password")
	}
}
