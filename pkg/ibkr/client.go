package ibkr

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// Standard gateway ports.
const (
	PaperPort = 7497
	LivePort  = 7496
)

// Config carries the connection settings for one user's gateway session.
// Credentials come from the account owner, never from process env.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	AccountID  string
	Production bool
}

// Position is one holding reported by the gateway.
type Position struct {
	Symbol     string  `json:"symbol"`
	SecType    string  `json:"sec_type"` // STK or OPT
	Right      string  `json:"right"`    // C or P for options
	Strike     float64 `json:"strike"`
	Expiry     string  `json:"expiry"` // 2006-01-02
	Quantity   float64 `json:"quantity"`
	Multiplier int     `json:"multiplier"`
}

// OrderTicket is an order submission.
type OrderTicket struct {
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	SecType       string  `json:"sec_type"`
	Right         string  `json:"right,omitempty"`
	Strike        float64 `json:"strike,omitempty"`
	Expiry        string  `json:"expiry,omitempty"`
	Side          string  `json:"side"`
	Quantity      float64 `json:"quantity"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
	AccountID     string  `json:"account_id"`
}

// Quote is a two-sided market snapshot.
type Quote struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Last float64 `json:"last"`
}

// Client talks to the brokerage gateway's REST bridge.
type Client struct {
	http *resty.Client
	cfg  Config
}

// NewClient builds a gateway client for one account session.
func NewClient(cfg Config) *Client {
	http := resty.New().
		SetBaseURL(fmt.Sprintf("http://%s:%d/v1/api", cfg.Host, cfg.Port)).
		SetTimeout(30 * time.Second).
		SetBasicAuth(cfg.Username, cfg.Password)
	return &Client{http: http, cfg: cfg}
}

// AccountID returns the configured account.
func (c *Client) AccountID() string { return c.cfg.AccountID }

// Ping checks gateway connectivity and session auth.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/iserver/auth/status")
	if err != nil {
		return fmt.Errorf("gateway ping: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("gateway ping: status %d", resp.StatusCode())
	}
	if !gjson.GetBytes(resp.Body(), "authenticated").Bool() {
		return fmt.Errorf("gateway session not authenticated")
	}
	return nil
}

// Cash returns the available cash balance for the account.
func (c *Client) Cash(ctx context.Context) (float64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/portfolio/%s/summary", c.cfg.AccountID))
	if err != nil {
		return 0, fmt.Errorf("fetch account summary: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("fetch account summary: status %d", resp.StatusCode())
	}
	return gjson.GetBytes(resp.Body(), "availablefunds.amount").Float(), nil
}

// Positions lists the account's open positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&[]Position{}).
		Get(fmt.Sprintf("/portfolio/%s/positions", c.cfg.AccountID))
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch positions: status %d", resp.StatusCode())
	}
	return *resp.Result().(*[]Position), nil
}

// LastPrice returns the last traded price for a contract.
func (c *Client) LastPrice(ctx context.Context, symbol, secType, right, expiry string, strike float64) (float64, error) {
	quote, err := c.Quote(ctx, symbol, secType, right, expiry, strike)
	if err != nil {
		return 0, err
	}
	if quote.Last <= 0 {
		return 0, fmt.Errorf("no last price for %s", symbol)
	}
	return quote.Last, nil
}

// Quote returns a market snapshot for a contract.
func (c *Client) Quote(ctx context.Context, symbol, secType, right, expiry string, strike float64) (Quote, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetQueryParam("sec_type", secType)
	if secType == "OPT" {
		req.
			SetQueryParam("right", right).
			SetQueryParam("expiry", expiry).
			SetQueryParam("strike", fmt.Sprintf("%g", strike))
	}

	resp, err := req.Get("/md/snapshot")
	if err != nil {
		return Quote{}, fmt.Errorf("fetch snapshot for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return Quote{}, fmt.Errorf("fetch snapshot for %s: status %d", symbol, resp.StatusCode())
	}

	body := gjson.ParseBytes(resp.Body())
	return Quote{
		Bid:  body.Get("bid").Float(),
		Ask:  body.Get("ask").Float(),
		Last: body.Get("last").Float(),
	}, nil
}

// Chains returns listed expirations and strikes for an underlying: right
// ("C"/"P") -> expiration date -> strikes.
func (c *Client) Chains(ctx context.Context, symbol string) (map[string]map[string][]float64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		Get("/iserver/secdef/strikes")
	if err != nil {
		return nil, fmt.Errorf("fetch chains for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch chains for %s: status %d", symbol, resp.StatusCode())
	}

	chains := map[string]map[string][]float64{"C": {}, "P": {}}
	gjson.GetBytes(resp.Body(), "chains").ForEach(func(right, byExpiry gjson.Result) bool {
		bucket, ok := chains[right.String()]
		if !ok {
			return true
		}
		byExpiry.ForEach(func(expiry, strikes gjson.Result) bool {
			var list []float64
			strikes.ForEach(func(_, s gjson.Result) bool {
				list = append(list, s.Float())
				return true
			})
			bucket[expiry.String()] = list
			return true
		})
		return true
	})
	return chains, nil
}

// StrikeForDelta asks the gateway's greeks service for the listed strike
// whose delta is nearest the target.
func (c *Client) StrikeForDelta(ctx context.Context, symbol string, targetDelta float64, expiry, right string) (float64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"delta":  fmt.Sprintf("%g", targetDelta),
			"expiry": expiry,
			"right":  right,
		}).
		Get("/iserver/secdef/strike-for-delta")
	if err != nil {
		return 0, fmt.Errorf("resolve strike for delta: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("resolve strike for delta: status %d", resp.StatusCode())
	}
	strike := gjson.GetBytes(resp.Body(), "strike").Float()
	if strike <= 0 {
		return 0, fmt.Errorf("no strike for delta %g on %s", targetDelta, symbol)
	}
	return strike, nil
}

// PlaceOrder submits one order and returns the gateway order id.
func (c *Client) PlaceOrder(ctx context.Context, ticket OrderTicket) (string, error) {
	ticket.AccountID = c.cfg.AccountID

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(ticket).
		Post("/iserver/orders")
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("place order: status %d", resp.StatusCode())
	}

	orderID := gjson.GetBytes(resp.Body(), "order_id").String()
	if orderID == "" {
		return "", fmt.Errorf("gateway returned no order id")
	}
	return orderID, nil
}
