package strategy

import (
	"fmt"

	"strathub/internal/model"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Per-strategy parameter schemas. The parameter bag is a tagged union
// keyed by the bot's strategy: each variant has its own validated shape,
// and unknown keys are rejected.

const wheelSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"symbol":       {"type": "string", "minLength": 1},
		"dte_min":      {"type": "integer", "minimum": 0},
		"dte_max":      {"type": "integer", "minimum": 1},
		"target_delta": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
		"contracts":    {"type": "integer", "minimum": 1}
	}
}`

const straddleSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"underlying_symbol": {"type": "string", "minLength": 1},
		"days_to_expiry":    {"type": "integer", "minimum": 1},
		"contracts":         {"type": "integer", "minimum": 1},
		"limit_type":        {"type": "string", "enum": ["mid", "market"]}
	}
}`

const strangleSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"underlying_symbol":    {"type": "string", "minLength": 1},
		"dte_target":           {"type": "integer", "minimum": 1},
		"strike_buffer_pct":    {"type": "number", "exclusiveMinimum": 0, "maximum": 0.5},
		"contracts":            {"type": "integer", "minimum": 1},
		"exit_days_before_exp": {"type": "integer", "minimum": 0}
	}
}`

var paramSchemas = map[string]*jsonschema.Schema{
	model.StrategyWheel:         jsonschema.MustCompileString("wheel.json", wheelSchema),
	model.StrategyShortStraddle: jsonschema.MustCompileString("short_straddle.json", straddleSchema),
	model.StrategyShortStrangle: jsonschema.MustCompileString("short_strangle.json", strangleSchema),
}

// ValidateParams checks a parameter bag against the schema of the named
// strategy.
func ValidateParams(strategyTag string, params map[string]interface{}) error {
	schema, ok := paramSchemas[strategyTag]
	if !ok {
		return fmt.Errorf("unknown strategy %q", strategyTag)
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	// jsonschema validates generic JSON values; numbers from encoding/json
	// already arrive as float64, which the draft accepts for integers when
	// they are whole.
	return schema.Validate(normalizeForSchema(params))
}

// normalizeForSchema converts the bag into plain JSON-shaped values.
func normalizeForSchema(params map[string]interface{}) interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		default:
			out[k] = v
		}
	}
	return out
}

// WheelParams drives the wheel strategy.
type WheelParams struct {
	Symbol      string  `mapstructure:"symbol"`
	DTEMin      int     `mapstructure:"dte_min"`
	DTEMax      int     `mapstructure:"dte_max"`
	TargetDelta float64 `mapstructure:"target_delta"`
	Contracts   int     `mapstructure:"contracts"`
}

// StraddleParams drives the short straddle strategy.
type StraddleParams struct {
	UnderlyingSymbol string `mapstructure:"underlying_symbol"`
	DaysToExpiry     int    `mapstructure:"days_to_expiry"`
	Contracts        int    `mapstructure:"contracts"`
	LimitType        string `mapstructure:"limit_type"`
}

// StrangleParams drives the short strangle strategy.
type StrangleParams struct {
	UnderlyingSymbol  string  `mapstructure:"underlying_symbol"`
	DTETarget         int     `mapstructure:"dte_target"`
	StrikeBufferPct   float64 `mapstructure:"strike_buffer_pct"`
	Contracts         int     `mapstructure:"contracts"`
	ExitDaysBeforeExp int     `mapstructure:"exit_days_before_exp"`
}

// DecodeWheelParams decodes a validated bag into wheel parameters with
// defaults applied.
func DecodeWheelParams(params map[string]interface{}) (WheelParams, error) {
	p := WheelParams{
		Symbol:      "SPY",
		DTEMin:      21,
		DTEMax:      45,
		TargetDelta: 0.30,
		Contracts:   1,
	}
	if err := mapstructure.WeakDecode(params, &p); err != nil {
		return p, err
	}
	return p, nil
}

// DecodeStraddleParams decodes a validated bag into straddle parameters
// with defaults applied.
func DecodeStraddleParams(params map[string]interface{}) (StraddleParams, error) {
	p := StraddleParams{
		UnderlyingSymbol: "SPY",
		DaysToExpiry:     7,
		Contracts:        1,
		LimitType:        "mid",
	}
	if err := mapstructure.WeakDecode(params, &p); err != nil {
		return p, err
	}
	return p, nil
}

// DecodeStrangleParams decodes a validated bag into strangle parameters
// with defaults applied.
func DecodeStrangleParams(params map[string]interface{}) (StrangleParams, error) {
	p := StrangleParams{
		UnderlyingSymbol:  "SPY",
		DTETarget:         30,
		StrikeBufferPct:   0.05,
		Contracts:         1,
		ExitDaysBeforeExp: 3,
	}
	if err := mapstructure.WeakDecode(params, &p); err != nil {
		return p, err
	}
	return p, nil
}
