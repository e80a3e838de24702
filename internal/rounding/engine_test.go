package rounding_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-tarif/internal/rounding"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyGrid(t *testing.T) {
	cases := []struct {
		name      string
		value     string
		strategy  rounding.Strategy
		direction rounding.Direction
		want      string
	}{
		{"none keeps two decimals", "1233.604", rounding.StrategyNone, rounding.DirectionNearest, "1233.6"},
		{"none ignores direction", "11000.005", rounding.StrategyNone, rounding.DirectionDown, "11000.01"},
		{"nearest below midpoint", "1233.60", rounding.StrategyFiveHundred, rounding.DirectionNearest, "1000"},
		{"nearest above midpoint", "1260", rounding.StrategyFiveHundred, rounding.DirectionNearest, "1500"},
		{"up", "1233.60", rounding.StrategyFiveHundred, rounding.DirectionUp, "1500"},
		{"down", "1499.99", rounding.StrategyFiveHundred, rounding.DirectionDown, "1000"},
		{"hundred nearest", "16468.56", rounding.StrategyHundred, rounding.DirectionNearest, "16500"},
		{"thousand up", "10001", rounding.StrategyThousand, rounding.DirectionUp, "11000"},
		{"exact multiple unchanged", "16000", rounding.StrategyFiveHundred, rounding.DirectionUp, "16000"},
		{"zero value", "0", rounding.StrategyThousand, rounding.DirectionNearest, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := rounding.Apply(dec(tc.value), rounding.Policy{Strategy: tc.strategy, Direction: tc.direction})
			require.True(t, got.Equal(dec(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

// Exact midpoints under "nearest" must round half-up, never to even or down.
func TestApplyMidpointHalfUp(t *testing.T) {
	cases := []struct {
		value    string
		strategy rounding.Strategy
		want     string
	}{
		{"250", rounding.StrategyFiveHundred, "500"},
		{"750", rounding.StrategyFiveHundred, "1000"},
		{"1250", rounding.StrategyFiveHundred, "1500"},
		{"50", rounding.StrategyHundred, "100"},
		{"150", rounding.StrategyHundred, "200"},
		{"2500", rounding.StrategyThousand, "3000"},
	}
	for _, tc := range cases {
		got := rounding.Apply(dec(tc.value), rounding.Policy{Strategy: tc.strategy, Direction: rounding.DirectionNearest})
		require.True(t, got.Equal(dec(tc.want)), "%s under %s: got %s want %s", tc.value, tc.strategy, got, tc.want)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := rounding.ParseStrategy("ROUND-500")
	require.NoError(t, err)
	require.Equal(t, rounding.StrategyFiveHundred, s)

	s, err = rounding.ParseStrategy("")
	require.NoError(t, err)
	require.Equal(t, rounding.StrategyNone, s)

	_, err = rounding.ParseStrategy("round-250")
	require.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	d, err := rounding.ParseDirection("Up")
	require.NoError(t, err)
	require.Equal(t, rounding.DirectionUp, d)

	_, err = rounding.ParseDirection("sideways")
	require.Error(t, err)
}
