package strategy

import (
	"fmt"

	"strathub/internal/model"
	"strathub/pkg/logger"
)

// New validates and decodes a parameter bag and builds the named strategy.
func New(strategyTag string, params map[string]interface{}, recorder *Recorder, log *logger.Logger) (Strategy, error) {
	if err := ValidateParams(strategyTag, params); err != nil {
		return nil, fmt.Errorf("invalid %s params: %w", strategyTag, err)
	}

	switch strategyTag {
	case model.StrategyWheel:
		p, err := DecodeWheelParams(params)
		if err != nil {
			return nil, err
		}
		return NewWheel(p, recorder, log), nil
	case model.StrategyShortStraddle:
		p, err := DecodeStraddleParams(params)
		if err != nil {
			return nil, err
		}
		return NewShortStraddle(p, recorder, log), nil
	case model.StrategyShortStrangle:
		p, err := DecodeStrangleParams(params)
		if err != nil {
			return nil, err
		}
		return NewShortStrangle(p, recorder, log), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategyTag)
	}
}

// UnderlyingSymbol extracts the traded symbol from a parameter bag, with
// the strategy's default applied when absent.
func UnderlyingSymbol(strategyTag string, params map[string]interface{}) (string, error) {
	switch strategyTag {
	case model.StrategyWheel:
		p, err := DecodeWheelParams(params)
		if err != nil {
			return "", err
		}
		return p.Symbol, nil
	case model.StrategyShortStraddle:
		p, err := DecodeStraddleParams(params)
		if err != nil {
			return "", err
		}
		return p.UnderlyingSymbol, nil
	case model.StrategyShortStrangle:
		p, err := DecodeStrangleParams(params)
		if err != nil {
			return "", err
		}
		return p.UnderlyingSymbol, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", strategyTag)
	}
}
