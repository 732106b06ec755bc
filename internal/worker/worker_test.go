package worker

import (
	"testing"
	"time"

	"strathub/internal/strategy"
	"strathub/pkg/ibkr"

	"github.com/stretchr/testify/assert"
)

func TestStreamEvent_MapsOptionFill(t *testing.T) {
	event := &ibkr.OrderEvent{
		ClientOrderID: "ord-1",
		Symbol:        "SPY",
		SecType:       "OPT",
		Right:         "P",
		Strike:        475,
		Expiry:        "2026-10-16",
		Side:          strategy.SideSellToOpen,
		Status:        "FILLED",
		FillPrice:     2.5,
		FillQuantity:  1,
		Multiplier:    100,
		Timestamp:     1760000000,
	}

	mapped := streamEvent(event)

	assert.Equal(t, "ord-1", mapped.Order.ID)
	assert.Equal(t, strategy.AssetTypeOption, mapped.Order.Asset.Type)
	assert.Equal(t, strategy.RightPut, mapped.Order.Asset.Right)
	assert.Equal(t, 475.0, mapped.Order.Asset.Strike)
	assert.Equal(t, "2026-10-16", mapped.Order.Asset.Expiration.Format("2006-01-02"))
	assert.Equal(t, 2.5, mapped.Price)
	assert.Equal(t, 100, mapped.Multiplier)
	assert.Equal(t, time.Unix(1760000000, 0).UTC(), mapped.Timestamp)
}

func TestStreamEvent_MapsStockFill(t *testing.T) {
	event := &ibkr.OrderEvent{
		ClientOrderID: "ord-2",
		Symbol:        "SPY",
		SecType:       "STK",
		Side:          "BUY",
		Status:        "FILLED",
		FillPrice:     470,
		FillQuantity:  100,
		Multiplier:    1,
	}

	mapped := streamEvent(event)

	assert.Equal(t, strategy.AssetTypeStock, mapped.Order.Asset.Type)
	assert.Equal(t, 1, mapped.Order.Asset.Multiplier)
	assert.True(t, mapped.Order.Asset.Expiration.IsZero())
}

func TestGatewayContract(t *testing.T) {
	secType, right, expiry := gatewayContract(strategy.Stock("SPY"))
	assert.Equal(t, "STK", secType)
	assert.Empty(t, right)
	assert.Empty(t, expiry)

	exp := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	secType, right, expiry = gatewayContract(strategy.Option("SPY", exp, 500, strategy.RightCall))
	assert.Equal(t, "OPT", secType)
	assert.Equal(t, "C", right)
	assert.Equal(t, "2026-10-16", expiry)
}
