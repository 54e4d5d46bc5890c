package broker

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"
)

// Nop is a zero-dependency Adapter double: connects instantly, reports an
// empty book, and accepts every order. Useful for coordinator/recovery
// wiring in tests and for running the core without a live broker.
type Nop struct {
	connected atomic.Bool
	ticket    atomic.Int64
}

// NewNop builds a disconnected Nop adapter.
func NewNop() *Nop { return &Nop{} }

func (n *Nop) Connect(ctx context.Context) error {
	n.connected.Store(true)
	return nil
}

func (n *Nop) Disconnect(ctx context.Context) error {
	n.connected.Store(false)
	return nil
}

func (n *Nop) IsConnected() bool { return n.connected.Load() }

func (n *Nop) AccountInfo(ctx context.Context) (AccountInfo, error) {
	return AccountInfo{Balance: 10000, Equity: 10000, MarginLevel: 1000, Currency: "USD"}, nil
}

func (n *Nop) SymbolTick(ctx context.Context, symbol string) (Tick, error) {
	return Tick{Bid: 1.0, Ask: 1.0001, Last: 1.0, Time: time.Now().UTC()}, nil
}

func (n *Nop) Candles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error) {
	return nil, nil
}

func (n *Nop) OpenPositions(ctx context.Context) ([]Position, error) { return nil, nil }

func (n *Nop) ClosePosition(ctx context.Context, ticket string) (CloseResult, error) {
	return CloseResult{Success: true}, nil
}

func (n *Nop) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	n.ticket.Add(1)
	return OrderResult{Success: true, Ticket: strconv.FormatInt(n.ticket.Load(), 10), ExecutedPrice: req.Entry}, nil
}

// NopExecution is a zero-dependency ExecutionAdapter double.
type NopExecution struct {
	ticket atomic.Int64
}

func (e *NopExecution) ExecuteOrder(ctx context.Context, req ExecutionRequest) (ExecutionResult, error) {
	e.ticket.Add(1)
	return ExecutionResult{Ticket: strconv.FormatInt(e.ticket.Load(), 10), ExecutedPrice: req.Entry}, nil
}
