package risk

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/pkg/models"
)

func testRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	return NewRegistry(config.Default().Risk, models.DefaultProfiles(), opts...)
}

func checkByName(t *testing.T, r *Registry, name string) Check {
	t.Helper()
	for _, c := range r.Checks() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("check %s not registered", name)
	return nil
}

func spotTrade(t *testing.T, volume, price int64) *models.Trade {
	t.Helper()
	trade, err := models.NewTrade(models.TradeParams{
		Type:      models.TradeTypeSpot,
		Direction: models.DirectionBuy,
		Volume:    decimal.NewFromInt(volume),
		Price:     decimal.NewFromInt(price),
		Period:    "peak",
	})
	require.NoError(t, err)
	return trade
}

func TestRegistryNamesAndOrder(t *testing.T) {
	r := testRegistry(t)
	assert.Equal(t, []string{
		CheckCreditLimit,
		CheckTradingLimit,
		CheckPriceDeviation,
		CheckCounterpartyRisk,
		CheckMarketRisk,
		CheckRegulatoryCompliance,
	}, r.Names())
}

func TestWithCheckReplacesByName(t *testing.T) {
	custom := CheckFunc{
		CheckName: CheckCounterpartyRisk,
		Fn: func(context.Context, *models.Trade, CheckContext) models.RiskCheckResult {
			return models.RiskCheckResult{CheckName: CheckCounterpartyRisk, Status: models.CheckWarning, Message: "watchlist"}
		},
	}

	r := testRegistry(t, WithCheck(custom))
	result := checkByName(t, r, CheckCounterpartyRisk).Evaluate(context.Background(), spotTrade(t, 500, 600), CheckContext{})
	assert.Equal(t, models.CheckWarning, result.Status)
	assert.Equal(t, "watchlist", result.Message)
}

func TestCreditLimitThresholds(t *testing.T) {
	// credit limit 1,000,000 with 500,000 already used
	ref := CheckContext{
		UsedCredit:  decimal.NewFromInt(500000),
		CreditLimit: decimal.NewFromInt(1000000),
	}
	check := checkByName(t, testRegistry(t), CheckCreditLimit)

	tests := []struct {
		name   string
		volume int64
		price  int64
		want   models.CheckStatus
	}{
		{"well inside the limit", 500, 500, models.CheckPassed},          // 250,000 -> 750,000 exposure
		{"exactly at the warning ratio", 500, 600, models.CheckPassed},   // 300,000 -> exactly 0.8 x limit
		{"just past the warning ratio", 501, 600, models.CheckWarning},   // 300,600
		{"exactly at the limit", 1000, 500, models.CheckWarning},         // 500,000 -> exactly limit
		{"over the limit", 715, 700, models.CheckBlocked},                // 500,500 -> 1,000,500
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := check.Evaluate(context.Background(), spotTrade(t, tt.volume, tt.price), ref)
			assert.Equal(t, tt.want, result.Status, result.Message)
			if result.Status != models.CheckPassed {
				assert.NotEmpty(t, result.Message)
			}
		})
	}
}

func TestTradingLimitThresholds(t *testing.T) {
	check := checkByName(t, testRegistry(t), CheckTradingLimit)

	// spot profile allows up to 1000 MWh; warning above 800
	tests := []struct {
		name   string
		volume int64
		want   models.CheckStatus
	}{
		{"small volume", 500, models.CheckPassed},
		{"exactly at warn ratio", 800, models.CheckPassed},
		{"just above warn ratio", 801, models.CheckWarning},
		{"at the ceiling", 1000, models.CheckWarning},
		{"above the ceiling", 1001, models.CheckBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := &models.Trade{Type: models.TradeTypeSpot, Volume: decimal.NewFromInt(tt.volume), Price: decimal.NewFromInt(500)}
			result := check.Evaluate(context.Background(), trade, CheckContext{})
			assert.Equal(t, tt.want, result.Status, result.Message)
		})
	}
}

func TestTradingLimitUnknownTypeFailsClosed(t *testing.T) {
	check := checkByName(t, testRegistry(t), CheckTradingLimit)
	trade := &models.Trade{Type: models.TradeType("futures"), Volume: decimal.NewFromInt(10)}

	result := check.Evaluate(context.Background(), trade, CheckContext{})
	assert.Equal(t, models.CheckBlocked, result.Status)
}

func TestPriceDeviationThresholds(t *testing.T) {
	check := checkByName(t, testRegistry(t), CheckPriceDeviation)
	ref := CheckContext{MarketPrice: decimal.NewFromInt(500)}

	tests := []struct {
		name  string
		price int64
		want  models.CheckStatus
	}{
		{"at market", 500, models.CheckPassed},
		{"exactly five percent", 525, models.CheckPassed},
		{"six percent above", 530, models.CheckWarning},
		{"six percent below", 470, models.CheckWarning},
		{"exactly ten percent", 550, models.CheckWarning},
		{"eleven percent above", 555, models.CheckBlocked},
		{"eleven percent below", 445, models.CheckBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := &models.Trade{Type: models.TradeTypeSpot, Volume: decimal.NewFromInt(500), Price: decimal.NewFromInt(tt.price)}
			result := check.Evaluate(context.Background(), trade, ref)
			assert.Equal(t, tt.want, result.Status, result.Message)
		})
	}
}

func TestPriceDeviationWithoutMarketPriceBlocks(t *testing.T) {
	check := checkByName(t, testRegistry(t), CheckPriceDeviation)

	result := check.Evaluate(context.Background(), spotTrade(t, 500, 600), CheckContext{})
	assert.Equal(t, models.CheckBlocked, result.Status)
}

func TestMarketRiskVolatility(t *testing.T) {
	check := checkByName(t, testRegistry(t), CheckMarketRisk)

	calm := check.Evaluate(context.Background(), spotTrade(t, 500, 600), CheckContext{Volatility: decimal.NewFromFloat(0.05)})
	assert.Equal(t, models.CheckPassed, calm.Status)

	edge := check.Evaluate(context.Background(), spotTrade(t, 500, 600), CheckContext{Volatility: decimal.NewFromFloat(0.10)})
	assert.Equal(t, models.CheckPassed, edge.Status, "warning requires strictly above the level")

	stormy := check.Evaluate(context.Background(), spotTrade(t, 500, 600), CheckContext{Volatility: decimal.NewFromFloat(0.11)})
	assert.Equal(t, models.CheckWarning, stormy.Status)
}

func TestStubChecksPass(t *testing.T) {
	r := testRegistry(t)
	trade := spotTrade(t, 500, 600)

	for _, name := range []string{CheckCounterpartyRisk, CheckRegulatoryCompliance} {
		result := checkByName(t, r, name).Evaluate(context.Background(), trade, CheckContext{})
		assert.Equal(t, models.CheckPassed, result.Status, name)
	}
}
