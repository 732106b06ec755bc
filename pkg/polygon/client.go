package polygon

import (
	"context"
	"fmt"
	"time"

	"strathub/pkg/logger"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://api.polygon.io"

// Config carries the market-data API settings.
type Config struct {
	APIKey  string
	BaseURL string
}

// Bar is one daily OHLCV aggregate.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Contract is one listed option contract from the reference endpoint.
type Contract struct {
	Ticker     string
	Underlying string
	Right      string // call or put, lowercase as the API returns it
	Strike     float64
	Expiration time.Time
}

// Client talks to the Polygon.io REST API.
type Client struct {
	http   *resty.Client
	apiKey string
	logger *logger.Logger
}

// New builds a Polygon client.
func New(cfg Config, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{http: http, apiKey: cfg.APIKey, logger: log}
}

// DailyBars fetches adjusted daily aggregates for a symbol over [from, to].
func (c *Client) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"adjusted": "true",
			"sort":     "asc",
			"limit":    "50000",
			"apiKey":   c.apiKey,
		}).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch daily bars for %s: status %d", symbol, resp.StatusCode())
	}

	body := gjson.ParseBytes(resp.Body())
	if status := body.Get("status").String(); status != "OK" && status != "DELAYED" {
		return nil, fmt.Errorf("fetch daily bars for %s: status %q", symbol, status)
	}

	var bars []Bar
	body.Get("results").ForEach(func(_, r gjson.Result) bool {
		bars = append(bars, Bar{
			Date:   time.UnixMilli(r.Get("t").Int()).UTC(),
			Open:   r.Get("o").Float(),
			High:   r.Get("h").Float(),
			Low:    r.Get("l").Float(),
			Close:  r.Get("c").Float(),
			Volume: r.Get("v").Float(),
		})
		return true
	})

	c.logger.Debugf("Fetched %d daily aggregates for %s", len(bars), symbol)
	return bars, nil
}

// OptionContracts lists option contracts on an underlying whose expiration
// falls inside [expFrom, expTo]. Pagination follows next_url cursors.
func (c *Client) OptionContracts(ctx context.Context, underlying string, expFrom, expTo time.Time) ([]Contract, error) {
	params := map[string]string{
		"underlying_ticker":   underlying,
		"expiration_date.gte": expFrom.Format("2006-01-02"),
		"expiration_date.lte": expTo.Format("2006-01-02"),
		"limit":               "1000",
		"apiKey":              c.apiKey,
	}

	var contracts []Contract
	path := "/v3/reference/options/contracts"
	for path != "" {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("fetch option contracts for %s: %w", underlying, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("fetch option contracts for %s: status %d", underlying, resp.StatusCode())
		}

		body := gjson.ParseBytes(resp.Body())
		body.Get("results").ForEach(func(_, r gjson.Result) bool {
			exp, err := time.Parse("2006-01-02", r.Get("expiration_date").String())
			if err != nil {
				return true
			}
			contracts = append(contracts, Contract{
				Ticker:     r.Get("ticker").String(),
				Underlying: underlying,
				Right:      r.Get("contract_type").String(),
				Strike:     r.Get("strike_price").Float(),
				Expiration: exp,
			})
			return true
		})

		// next_url already embeds the query; only the key must be re-sent.
		path = body.Get("next_url").String()
		params = map[string]string{"apiKey": c.apiKey}
	}

	c.logger.Debugf("Fetched %d option contracts for %s", len(contracts), underlying)
	return contracts, nil
}

// LastClose returns the most recent daily close for a symbol.
func (c *Client) LastClose(ctx context.Context, symbol string) (float64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("adjusted", "true").
		SetQueryParam("apiKey", c.apiKey).
		Get(fmt.Sprintf("/v2/aggs/ticker/%s/prev", symbol))
	if err != nil {
		return 0, fmt.Errorf("fetch previous close for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("fetch previous close for %s: status %d", symbol, resp.StatusCode())
	}

	closePrice := gjson.GetBytes(resp.Body(), "results.0.c").Float()
	if closePrice <= 0 {
		return 0, fmt.Errorf("no close price for %s", symbol)
	}
	return closePrice, nil
}
