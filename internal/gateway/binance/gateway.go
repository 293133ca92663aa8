// Package binance implements exchange.Gateway on Binance USDT-M futures via
// the go-binance SDK.
package binance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"mako/internal/gateway/exchange"
	"mako/internal/logger"
	"mako/internal/market"
	symbolpkg "mako/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

const maxHistoryLimit = 1500

// stakeAsset is the quote asset whose balance backs every position.
const stakeAsset = "USDT"

type Gateway struct {
	cfg    Config
	client *futures.Client

	filtersMu sync.Mutex
	filters   map[string]exchange.SymbolFilters
}

func New(cfg Config) (*Gateway, error) {
	final := cfg.withDefaults()
	if strings.TrimSpace(final.APIKey) == "" || strings.TrimSpace(final.APISecret) == "" {
		return nil, fmt.Errorf("binance gateway: api credentials are required")
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Gateway{
		cfg:     final,
		client:  client,
		filters: make(map[string]exchange.SymbolFilters),
	}, nil
}

func (g *Gateway) Name() string { return "binance-futures" }

func (g *Gateway) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, exchange.NewError(exchange.KindPermanent, "GetCandles", fmt.Errorf("symbol is required"))
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, exchange.NewError(exchange.KindPermanent, "GetCandles", fmt.Errorf("interval is required"))
	}
	// Binance requires symbols without slashes (e.g., BTCUSDT)
	clean := symbolpkg.Binance.ToExchange(symbol)
	kls, err := g.client.NewKlinesService().Symbol(clean).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classifyRead("GetCandles", err)
	}
	out := make([]market.Candle, 0, len(kls))
	now := time.Now().UnixMilli()
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		// drop the still-forming kline so strategies only ever see closed bars
		if kl.CloseTime >= now {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out, nil
}

func (g *Gateway) GetPrice(ctx context.Context, symbol string) (float64, error) {
	clean := symbolpkg.Binance.ToExchange(symbol)
	prices, err := g.client.NewListPricesService().Symbol(clean).Do(ctx)
	if err != nil {
		return 0, classifyRead("GetPrice", err)
	}
	for _, p := range prices {
		if p != nil && p.Symbol == clean {
			return parseFloat(p.Price), nil
		}
	}
	return 0, exchange.NewError(exchange.KindTransient, "GetPrice", fmt.Errorf("no price for %s", clean))
}

func (g *Gateway) GetPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	clean := symbolpkg.Binance.ToExchange(symbol)
	risks, err := g.client.NewGetPositionRiskService().Symbol(clean).Do(ctx)
	if err != nil {
		return nil, classifyRead("GetPosition", err)
	}
	for _, r := range risks {
		if r == nil || r.Symbol != clean {
			continue
		}
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := exchange.SideLong
		if amt < 0 {
			side = exchange.SideShort
		}
		lev, _ := strconv.Atoi(strings.TrimSpace(r.Leverage))
		return &exchange.Position{
			Symbol:     symbol,
			Side:       side,
			Size:       math.Abs(amt),
			EntryPrice: parseFloat(r.EntryPrice),
			Leverage:   lev,
			MarkPrice:  parseFloat(r.MarkPrice),
			UpdatedAt:  time.Now(),
		}, nil
	}
	return nil, nil
}

func (g *Gateway) GetBalance(ctx context.Context) (exchange.Balance, error) {
	balances, err := g.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return exchange.Balance{}, classifyRead("GetBalance", err)
	}
	for _, b := range balances {
		if b == nil || b.Asset != stakeAsset {
			continue
		}
		return exchange.Balance{
			Asset:     b.Asset,
			Total:     parseFloat(b.Balance),
			Available: parseFloat(b.AvailableBalance),
			UpdatedAt: time.Now(),
		}, nil
	}
	logger.Warnf("binance: %s balance not found in account", stakeAsset)
	return exchange.Balance{Asset: stakeAsset, UpdatedAt: time.Now()}, nil
}

func (g *Gateway) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if strings.TrimSpace(req.ClientOrderID) == "" {
		return exchange.OrderResult{}, exchange.NewError(exchange.KindPermanent, "PlaceOrder", fmt.Errorf("client order id is required"))
	}
	if req.Size <= 0 {
		return exchange.OrderResult{}, exchange.NewError(exchange.KindPermanent, "PlaceOrder", fmt.Errorf("size must be positive"))
	}
	clean := symbolpkg.Binance.ToExchange(req.Symbol)
	filters, err := g.SymbolFilters(ctx, req.Symbol)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	svc := g.client.NewCreateOrderService().
		Symbol(clean).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(formatQuantity(req.Size, filters.QtyPrec)).
		NewClientOrderID(req.ClientOrderID).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return exchange.OrderResult{}, classifyWrite("PlaceOrder", err)
	}
	return exchange.OrderResult{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Status:        mapOrderStatus(resp.Status),
		FillPrice:     parseFloat(resp.AvgPrice),
		FilledSize:    parseFloat(resp.ExecutedQuantity),
		SubmittedAt:   time.Now(),
	}, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol, clientOrderID string) error {
	clean := symbolpkg.Binance.ToExchange(symbol)
	_, err := g.client.NewCancelOrderService().Symbol(clean).OrigClientOrderID(clientOrderID).Do(ctx)
	if err != nil {
		if apiCode(err) == codeUnknownOrder {
			// already gone; nothing left to cancel
			return nil
		}
		return classifyWrite("CancelOrder", err)
	}
	return nil
}

func (g *Gateway) GetOrderStatus(ctx context.Context, symbol, clientOrderID string) (exchange.OrderResult, error) {
	clean := symbolpkg.Binance.ToExchange(symbol)
	order, err := g.client.NewGetOrderService().Symbol(clean).OrigClientOrderID(clientOrderID).Do(ctx)
	if err != nil {
		if apiCode(err) == codeOrderNotFound {
			return exchange.OrderResult{ClientOrderID: clientOrderID, Status: exchange.OrderStatusUnknown}, nil
		}
		return exchange.OrderResult{}, classifyRead("GetOrderStatus", err)
	}
	return exchange.OrderResult{
		OrderID:       strconv.FormatInt(order.OrderID, 10),
		ClientOrderID: order.ClientOrderID,
		Status:        mapOrderStatus(order.Status),
		FillPrice:     parseFloat(order.AvgPrice),
		FilledSize:    parseFloat(order.ExecutedQuantity),
		SubmittedAt:   time.UnixMilli(order.Time),
	}, nil
}

func (g *Gateway) SymbolFilters(ctx context.Context, symbol string) (exchange.SymbolFilters, error) {
	clean := symbolpkg.Binance.ToExchange(symbol)
	g.filtersMu.Lock()
	cached, ok := g.filters[clean]
	g.filtersMu.Unlock()
	if ok {
		return cached, nil
	}
	info, err := g.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return exchange.SymbolFilters{}, classifyRead("SymbolFilters", err)
	}
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != clean {
			continue
		}
		filters := exchange.SymbolFilters{
			PricePrec: s.PricePrecision,
			QtyPrec:   s.QuantityPrecision,
		}
		if lot := s.LotSizeFilter(); lot != nil {
			filters.StepSize = parseFloat(lot.StepSize)
			filters.MinQty = parseFloat(lot.MinQuantity)
		}
		if mn := s.MinNotionalFilter(); mn != nil {
			filters.MinNotional = parseFloat(mn.Notional)
		}
		g.filtersMu.Lock()
		g.filters[clean] = filters
		g.filtersMu.Unlock()
		return filters, nil
	}
	return exchange.SymbolFilters{}, exchange.NewError(exchange.KindPermanent, "SymbolFilters", fmt.Errorf("symbol %s not listed", clean))
}

func (g *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	clean := symbolpkg.Binance.ToExchange(symbol)
	_, err := g.client.NewChangeLeverageService().Symbol(clean).Leverage(leverage).Do(ctx)
	if err != nil {
		return classifyWrite("SetLeverage", err)
	}
	return nil
}

func (g *Gateway) SetIsolatedMargin(ctx context.Context, symbol string) error {
	clean := symbolpkg.Binance.ToExchange(symbol)
	err := g.client.NewChangeMarginTypeService().Symbol(clean).MarginType(futures.MarginTypeIsolated).Do(ctx)
	if err != nil {
		if apiCode(err) == codeNoNeedToChange {
			return nil
		}
		return classifyWrite("SetIsolatedMargin", err)
	}
	return nil
}

func mapOrderStatus(status futures.OrderStatusType) exchange.OrderStatus {
	switch status {
	case futures.OrderStatusTypeFilled:
		return exchange.OrderStatusFilled
	case futures.OrderStatusTypeNew, futures.OrderStatusTypePartiallyFilled:
		return exchange.OrderStatusOpen
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return exchange.OrderStatusCancelled
	case futures.OrderStatusTypeRejected:
		return exchange.OrderStatusRejected
	default:
		return exchange.OrderStatusUnknown
	}
}

func formatQuantity(qty float64, prec int) string {
	if prec < 0 {
		prec = 0
	}
	return strconv.FormatFloat(qty, 'f', prec, 64)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
