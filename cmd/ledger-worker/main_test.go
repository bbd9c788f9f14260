package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/amqp"
	"ledger/internal/backend"
)

func TestEventSource_ReusesBackendConnection(t *testing.T) {
	client := &amqp.Client{}
	got, err := eventSource(&backend.BackendResult{Events: client})
	require.NoError(t, err)
	assert.Same(t, client, got)
}

func TestEventSource_NoBroker(t *testing.T) {
	_, err := eventSource(&backend.BackendResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMQP broker unreachable")
}
