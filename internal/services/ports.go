package services

import (
	"context"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// TransactionExporter writes an account's transactions to a file and returns its path.
type TransactionExporter interface {
	WriteTransactions(ctx context.Context, account core.Account, txs []core.Transaction) (string, error)
}

// ChartRenderer draws per-category averages and returns the output path.
type ChartRenderer interface {
	RenderAverages(ctx context.Context, account core.Account, averages []core.CategoryAverage) (string, error)
}

// EventPublisher announces committed balance changes.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *amqp.LedgerEvent) error
}
