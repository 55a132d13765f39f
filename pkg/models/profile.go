package models

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/voltex/riskflow/pkg/errors"
)

// TradeProfile bounds what a single trade of one type may look like:
// volume limits, the admissible price band and the allowed delivery
// periods. The trading-limit risk check reads MaxVolume from the same
// profile used for input validation.
type TradeProfile struct {
	MinVolume decimal.Decimal `json:"min_volume" mapstructure:"min_volume"`
	MaxVolume decimal.Decimal `json:"max_volume" mapstructure:"max_volume"`
	PriceMin  decimal.Decimal `json:"price_min" mapstructure:"price_min"`
	PriceMax  decimal.Decimal `json:"price_max" mapstructure:"price_max"`
	Periods   []string        `json:"periods" mapstructure:"periods"`
}

// DefaultProfiles returns the built-in per-type trading profiles.
func DefaultProfiles() map[TradeType]TradeProfile {
	return map[TradeType]TradeProfile{
		TradeTypeSpot: {
			MinVolume: decimal.NewFromInt(100),
			MaxVolume: decimal.NewFromInt(1000),
			PriceMin:  decimal.NewFromInt(300),
			PriceMax:  decimal.NewFromInt(800),
			Periods:   []string{"peak", "flat", "valley"},
		},
		TradeTypeContract: {
			MinVolume: decimal.NewFromInt(500),
			MaxVolume: decimal.NewFromInt(5000),
			PriceMin:  decimal.NewFromInt(350),
			PriceMax:  decimal.NewFromInt(600),
			Periods:   []string{"monthly", "quarterly", "yearly"},
		},
		TradeTypeAncillary: {
			MinVolume: decimal.NewFromInt(200),
			MaxVolume: decimal.NewFromInt(2000),
			PriceMin:  decimal.NewFromInt(200),
			PriceMax:  decimal.NewFromInt(400),
			Periods:   []string{"hourly", "daily", "weekly"},
		},
		TradeTypeGreen: {
			MinVolume: decimal.NewFromInt(100),
			MaxVolume: decimal.NewFromInt(3000),
			PriceMin:  decimal.NewFromInt(400),
			PriceMax:  decimal.NewFromInt(900),
			Periods:   []string{"monthly", "quarterly", "yearly"},
		},
	}
}

// CheckTrade verifies a trade against the profile's bounds.
func (p TradeProfile) CheckTrade(t *Trade) []errors.FieldError {
	var fields []errors.FieldError

	if t.Volume.LessThan(p.MinVolume) || t.Volume.GreaterThan(p.MaxVolume) {
		fields = append(fields, errors.NewFieldError("volume",
			fmt.Sprintf("must be between %s and %s MWh", p.MinVolume, p.MaxVolume)))
	}
	if t.Price.LessThan(p.PriceMin) || t.Price.GreaterThan(p.PriceMax) {
		fields = append(fields, errors.NewFieldError("price",
			fmt.Sprintf("must be between %s and %s per MWh", p.PriceMin, p.PriceMax)))
	}
	if t.Period != "" && !p.allowsPeriod(t.Period) {
		fields = append(fields, errors.NewFieldError("period",
			fmt.Sprintf("period %q not supported for %s trades", t.Period, t.Type)))
	}

	return fields
}

func (p TradeProfile) allowsPeriod(period string) bool {
	for _, allowed := range p.Periods {
		if allowed == period {
			return true
		}
	}
	return false
}
