package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradingcore/src/model"
)

func openPosition(symbol, assetType, qty, avg, mark string) model.Position {
	markPrice := decimal.RequireFromString(mark)
	return model.Position{
		Quantity:     decimal.RequireFromString(qty),
		AvgBuyPrice:  decimal.RequireFromString(avg),
		CurrentPrice: &markPrice,
		Status:       model.PositionStatusOpen,
		OpenedAt:     time.Now(),
		Asset:        &model.Asset{Symbol: symbol, AssetType: assetType},
	}
}

func TestComputeExposures(t *testing.T) {
	cash := decimal.RequireFromString("5000")
	positions := []model.Position{
		openPosition("BTC", model.AssetTypeCrypto, "0.1", "40000", "40000"), // 4000
		openPosition("ETH", model.AssetTypeCrypto, "0.5", "2000", "2000"),   // 1000
	}

	total, exposures := ComputeExposures(cash, positions)

	if !total.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("total mismatch. got=%s want=10000", total)
	}
	if len(exposures) != 2 {
		t.Fatalf("expected 2 exposures, got %d", len(exposures))
	}
	if !exposures[0].Pct.Equal(decimal.RequireFromString("40")) {
		t.Fatalf("BTC pct mismatch. got=%s want=40", exposures[0].Pct)
	}
	if !exposures[1].Pct.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("ETH pct mismatch. got=%s want=10", exposures[1].Pct)
	}
}

func TestTypeAllocation(t *testing.T) {
	positions := []model.Position{
		openPosition("BTC", model.AssetTypeCrypto, "0.1", "40000", "40000"),
		openPosition("AAPL", model.AssetTypeStock, "10", "100", "100"),
		openPosition("ETH", model.AssetTypeCrypto, "0.5", "2000", "2000"),
	}

	total := decimal.RequireFromString("10000")
	allocation := TypeAllocation(total, positions)

	if !allocation[model.AssetTypeCrypto].Equal(decimal.RequireFromString("50")) {
		t.Fatalf("crypto allocation mismatch. got=%s want=50", allocation[model.AssetTypeCrypto])
	}
	if !allocation[model.AssetTypeStock].Equal(decimal.RequireFromString("10")) {
		t.Fatalf("stock allocation mismatch. got=%s want=10", allocation[model.AssetTypeStock])
	}
}

func TestDrawdownPct(t *testing.T) {
	tests := []struct {
		name    string
		initial string
		total   string
		want    string
	}{
		{name: "above water", initial: "10000", total: "11000", want: "0"},
		{name: "flat", initial: "10000", total: "10000", want: "0"},
		{name: "down 15 percent", initial: "10000", total: "8500", want: "15"},
		{name: "down 25 percent", initial: "10000", total: "7500", want: "25"},
		{name: "zero initial", initial: "0", total: "100", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DrawdownPct(
				decimal.RequireFromString(tt.initial),
				decimal.RequireFromString(tt.total),
			)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("drawdown mismatch. got=%s want=%s", got, tt.want)
			}
		})
	}
}

func TestAnnualizedVolatilityPct(t *testing.T) {
	if !AnnualizedVolatilityPct(nil).IsZero() {
		t.Fatal("empty series must yield zero volatility")
	}

	flat := []decimal.Decimal{
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.01"),
	}
	if !AnnualizedVolatilityPct(flat).IsZero() {
		t.Fatal("constant returns must yield zero volatility")
	}

	noisy := []decimal.Decimal{
		decimal.RequireFromString("0.05"),
		decimal.RequireFromString("-0.05"),
		decimal.RequireFromString("0.05"),
		decimal.RequireFromString("-0.05"),
	}
	vol := AnnualizedVolatilityPct(noisy)
	if vol.LessThanOrEqual(decimal.RequireFromString("30")) {
		t.Fatalf("noisy series should cross the volatility threshold, got %s", vol)
	}
}

func TestSeverityMappings(t *testing.T) {
	tests := []struct {
		name string
		fn   func(decimal.Decimal) string
		pct  string
		want string
	}{
		{name: "concentration below", fn: ConcentrationSeverity, pct: "20", want: ""},
		{name: "concentration medium", fn: ConcentrationSeverity, pct: "30", want: model.SeverityMedium},
		{name: "concentration high", fn: ConcentrationSeverity, pct: "45", want: model.SeverityHigh},
		{name: "drawdown below", fn: DrawdownSeverity, pct: "5", want: ""},
		{name: "drawdown high", fn: DrawdownSeverity, pct: "15", want: model.SeverityHigh},
		{name: "drawdown critical", fn: DrawdownSeverity, pct: "25", want: model.SeverityCritical},
		{name: "volatility below", fn: VolatilitySeverity, pct: "25", want: ""},
		{name: "volatility medium", fn: VolatilitySeverity, pct: "35", want: model.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(decimal.RequireFromString(tt.pct))
			if got != tt.want {
				t.Fatalf("severity mismatch. got=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	order := []string{"", model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical}
	for i := 1; i < len(order); i++ {
		if severityRank(order[i]) <= severityRank(order[i-1]) {
			t.Fatalf("%q must rank above %q", order[i], order[i-1])
		}
	}
}
