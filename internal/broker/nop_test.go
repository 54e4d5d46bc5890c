package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNopAdapterLifecycle(t *testing.T) {
	n := NewNop()
	require.False(t, n.IsConnected())
	require.NoError(t, n.Connect(context.Background()))
	require.True(t, n.IsConnected())

	info, err := n.AccountInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "USD", info.Currency)

	result, err := n.PlaceOrder(context.Background(), OrderRequest{Symbol: "EURUSD", Side: "buy", Volume: 0.1, Entry: 1.1})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.Ticket)

	require.NoError(t, n.Disconnect(context.Background()))
	require.False(t, n.IsConnected())
}

func TestNopExecutionAdapter(t *testing.T) {
	e := &NopExecution{}
	result, err := e.ExecuteOrder(context.Background(), ExecutionRequest{Symbol: "EURUSD", Entry: 1.1})
	require.NoError(t, err)
	require.NotEmpty(t, result.Ticket)
}
