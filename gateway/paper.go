package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/perptrader/internal/id"
	"github.com/rustyeddy/perptrader/ledger"
)

// Paper is an in-memory exchange. Sizes are truncated to LotDecimals
// places and orders fill at the requested price.
type Paper struct {
	mu          sync.Mutex
	lotDecimals int32
	positions   map[string]*Position
	now         func() time.Time
}

func NewPaper(lotDecimals int32) *Paper {
	return &Paper{
		lotDecimals: lotDecimals,
		positions:   make(map[string]*Position),
		now:         time.Now,
	}
}

// Lot truncates size to the paper exchange's lot precision.
func (p *Paper) Lot(size float64) decimal.Decimal {
	return decimal.NewFromFloat(size).Truncate(p.lotDecimals)
}

func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	if req.Symbol == "" {
		return Fill{}, fmt.Errorf("gateway: symbol is required")
	}
	if req.Price <= 0 {
		return Fill{}, fmt.Errorf("gateway: bad price %v for %s", req.Price, req.Symbol)
	}

	size := p.Lot(req.Size)
	if !size.IsPositive() {
		return Fill{}, ErrSizeTooSmall
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.positions[req.Symbol]; ok {
		return Fill{}, ErrPositionOpen
	}

	price := decimal.NewFromFloat(req.Price)
	p.positions[req.Symbol] = &Position{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Size:       size,
		EntryPrice: price,
		MarkPrice:  price,
		Leverage:   req.Leverage,
	}

	return Fill{
		OrderID: id.New(),
		Symbol:  req.Symbol,
		Side:    req.Side,
		Size:    size,
		Price:   price,
		Time:    p.now().UTC(),
	}, nil
}

func (p *Paper) ClosePosition(ctx context.Context, symbol string, price float64) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return Fill{}, ErrNoPosition
	}
	delete(p.positions, symbol)

	return Fill{
		OrderID: id.New(),
		Symbol:  symbol,
		Side:    opposite(pos.Side),
		Size:    pos.Size,
		Price:   decimal.NewFromFloat(price),
		Time:    p.now().UTC(),
	}, nil
}

func (p *Paper) GetPosition(ctx context.Context, symbol string) (Position, bool, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}, false, nil
	}
	return *pos, true, nil
}

// Mark updates the mark price and unrealized P&L of an open position.
func (p *Paper) Mark(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return
	}
	pos.MarkPrice = decimal.NewFromFloat(price)
	delta := pos.MarkPrice.Sub(pos.EntryPrice)
	if pos.Side == ledger.Short {
		delta = delta.Neg()
	}
	pos.UnrealizedPnL = delta.Mul(pos.Size)
}
