package worker

import (
	"context"
	"fmt"
	"time"

	"strathub/internal/strategy"
	"strathub/pkg/ibkr"
)

const expiryLayout = "2006-01-02"

// gatewayEngine adapts the brokerage gateway client to the engine surface
// strategies drive. Strategies stay oblivious to whether they run against
// the gateway or the backtest simulator.
type gatewayEngine struct {
	client *ibkr.Client
}

func newGatewayEngine(client *ibkr.Client) *gatewayEngine {
	return &gatewayEngine{client: client}
}

func (e *gatewayEngine) Now() time.Time {
	return time.Now().UTC()
}

func (e *gatewayEngine) Cash(ctx context.Context) (float64, error) {
	return e.client.Cash(ctx)
}

func (e *gatewayEngine) Positions(ctx context.Context) ([]strategy.Position, error) {
	raw, err := e.client.Positions(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]strategy.Position, 0, len(raw))
	for _, p := range raw {
		if p.SecType == "OPT" {
			expiration, err := time.Parse(expiryLayout, p.Expiry)
			if err != nil {
				return nil, fmt.Errorf("unparseable expiry %q for %s: %w", p.Expiry, p.Symbol, err)
			}
			positions = append(positions, strategy.Position{
				Asset:    strategy.Option(p.Symbol, expiration, p.Strike, rightFromGateway(p.Right)),
				Quantity: p.Quantity,
			})
			continue
		}
		positions = append(positions, strategy.Position{
			Asset:    strategy.Stock(p.Symbol),
			Quantity: p.Quantity,
		})
	}
	return positions, nil
}

func (e *gatewayEngine) LastPrice(ctx context.Context, asset strategy.Asset) (float64, error) {
	secType, right, expiry := gatewayContract(asset)
	return e.client.LastPrice(ctx, asset.Symbol, secType, right, expiry, asset.Strike)
}

func (e *gatewayEngine) Quote(ctx context.Context, asset strategy.Asset) (strategy.Quote, error) {
	secType, right, expiry := gatewayContract(asset)
	q, err := e.client.Quote(ctx, asset.Symbol, secType, right, expiry, asset.Strike)
	if err != nil {
		return strategy.Quote{}, err
	}
	return strategy.Quote{Bid: q.Bid, Ask: q.Ask}, nil
}

func (e *gatewayEngine) Chains(ctx context.Context, symbol string) (*strategy.Chains, error) {
	raw, err := e.client.Chains(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &strategy.Chains{
		Calls: raw["C"],
		Puts:  raw["P"],
	}, nil
}

func (e *gatewayEngine) StrikeForDelta(ctx context.Context, symbol string, spot, targetDelta float64, expiration time.Time, right string) (float64, error) {
	return e.client.StrikeForDelta(ctx, symbol, targetDelta, expiration.Format(expiryLayout), rightToGateway(right))
}

func (e *gatewayEngine) SubmitOrders(ctx context.Context, orders []*strategy.Order) error {
	for _, order := range orders {
		secType, right, expiry := gatewayContract(order.Asset)
		ticket := ibkr.OrderTicket{
			ClientOrderID: order.ID,
			Symbol:        order.Asset.Symbol,
			SecType:       secType,
			Right:         right,
			Strike:        order.Asset.Strike,
			Expiry:        expiry,
			Side:          order.Side,
			Quantity:      order.Quantity,
			LimitPrice:    order.LimitPrice,
			AccountID:     e.client.AccountID(),
		}
		if _, err := e.client.PlaceOrder(ctx, ticket); err != nil {
			return fmt.Errorf("order %s rejected: %w", order.ID, err)
		}
	}
	return nil
}

// gatewayContract maps an asset to the gateway's contract fields.
func gatewayContract(asset strategy.Asset) (secType, right, expiry string) {
	if asset.Type != strategy.AssetTypeOption {
		return "STK", "", ""
	}
	return "OPT", rightToGateway(asset.Right), asset.Expiration.Format(expiryLayout)
}

func rightToGateway(right string) string {
	if right == strategy.RightPut {
		return "P"
	}
	return "C"
}

func rightFromGateway(right string) string {
	if right == "P" {
		return strategy.RightPut
	}
	return strategy.RightCall
}
