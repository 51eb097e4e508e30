// Package gateway is the exchange-facing side of the live loop. The
// exchange's view of a position is authoritative for the exchange; the
// ledger keeps its own book and the two are not reconciled.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/perptrader/ledger"
)

var (
	ErrNoPosition   = errors.New("gateway: no open position")
	ErrPositionOpen = errors.New("gateway: position already open")
	ErrSizeTooSmall = errors.New("gateway: size rounds to zero")
)

type Gateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error)
	ClosePosition(ctx context.Context, symbol string, price float64) (Fill, error)
	GetPosition(ctx context.Context, symbol string) (Position, bool, error)
}

// OrderRequest opens a position of Size tokens at roughly Price.
type OrderRequest struct {
	Symbol   string
	Side     ledger.Side
	Size     float64
	Price    float64
	Leverage float64
}

type Fill struct {
	OrderID string
	Symbol  string
	Side    ledger.Side
	Size    decimal.Decimal
	Price   decimal.Decimal
	Time    time.Time
}

// Position is the exchange's record of an open position.
type Position struct {
	Symbol        string
	Side          ledger.Side
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal
	Leverage      float64
	UnrealizedPnL decimal.Decimal
}

func opposite(s ledger.Side) ledger.Side {
	if s == ledger.Long {
		return ledger.Short
	}
	return ledger.Long
}
