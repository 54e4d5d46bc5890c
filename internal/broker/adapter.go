// Package broker defines the external broker/execution adapter contracts
// the trading core consumes. This package carries no brokerage
// protocol implementation (Non-goals): only the interfaces and a
// no-op test double.
package broker

import (
	"context"
	"time"
)

// AccountInfo is the broker's account snapshot.
type AccountInfo struct {
	Balance     float64
	Equity      float64
	Margin      float64
	MarginLevel float64
	Currency    string
}

// Tick is a symbol's current quote.
type Tick struct {
	Bid  float64
	Ask  float64
	Last float64
	Time time.Time
}

// Candle mirrors analytics.Candle to avoid a package dependency in this
// narrow adapter surface.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Position is one open position.
type Position struct {
	Ticket     string
	Symbol     string
	Side       string
	Volume     float64
	OpenPrice  float64
	StopLoss   float64
	TakeProfit float64
	OpenedAt   time.Time
}

// CloseResult is the outcome of a close request.
type CloseResult struct {
	Success bool
	Message string
}

// OrderRequest describes an order to place.
type OrderRequest struct {
	Symbol     string
	Side       string
	Volume     float64
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Comment    string
}

// OrderResult is the outcome of placing an order.
type OrderResult struct {
	Success       bool
	Ticket        string
	ExecutedPrice float64
	SlippagePips  float64
	Error         string
}

// Adapter is the broker contract consumed by the trading core.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	AccountInfo(ctx context.Context) (AccountInfo, error)
	SymbolTick(ctx context.Context, symbol string) (Tick, error)
	Candles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error)
	OpenPositions(ctx context.Context) ([]Position, error)
	ClosePosition(ctx context.Context, ticket string) (CloseResult, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// ExecutionRequest carries the fields an execution engine needs: symbol,
// side, volume, entry/SL/TP, comment.
type ExecutionRequest = OrderRequest

// ExecutionResult is the execution engine's result ("Result carries
// ticket, executed_price, slippage_pips, duration_ms, error").
type ExecutionResult struct {
	Ticket        string
	ExecutedPrice float64
	SlippagePips  float64
	DurationMS    int64
	Error         string
}

// ExecutionAdapter is the execution-engine contract consumed by the risk
// gate's downstream.
type ExecutionAdapter interface {
	ExecuteOrder(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}
