package positionrules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseInheritsAbsentKeys(t *testing.T) {
	doc := []byte(`{
		"defaults": {"whitelistLong": ["BTC"], "maxLeverage": 3, "cooldownMinutes": 15},
		"overrides": {"eth": {"maxLeverage": 5}}
	}`)

	rs, err := Parse(doc)
	require.NoError(t, err)

	eth := rs.For("eth")
	require.Equal(t, []string{"BTC"}, eth.WhitelistLong, "absent key inherits from defaults")
	require.Equal(t, decimal.NewFromInt(5), *eth.MaxLeverage, "present key overrides")
	require.Equal(t, 15, eth.CooldownMinutes, "absent scalar also inherits")
}

func TestParseEmptyArrayResolvesToNotDefined(t *testing.T) {
	doc := []byte(`{
		"defaults": {"whitelistLong": ["BTC"]},
		"overrides": {"ETH": {"whitelistLong": []}}
	}`)

	rs, err := Parse(doc)
	require.NoError(t, err)
	require.Nil(t, rs.For("ETH").WhitelistLong, "explicit empty array clears to not-defined")
}

func TestParseExplicitNullClearsScalar(t *testing.T) {
	doc := []byte(`{
		"defaults": {"maxLeverage": 3},
		"overrides": {"ETH": {"maxLeverage": null}}
	}`)

	rs, err := Parse(doc)
	require.NoError(t, err)
	require.Nil(t, rs.For("ETH").MaxLeverage)
}

func TestParseUnconfiguredAssetFallsBackToDefaults(t *testing.T) {
	doc := []byte(`{"defaults": {"maxMarginShare": 0.3}}`)

	rs, err := Parse(doc)
	require.NoError(t, err)
	require.Equal(t, decimal.NewFromFloat(0.3), *rs.For("DOGE").MaxMarginShare)
}

func TestParseTotalMarginUsageLimitIsDefaultsOnly(t *testing.T) {
	doc := []byte(`{"defaults": {"totalMarginUsageLimit": 0.8}}`)

	rs, err := Parse(doc)
	require.NoError(t, err)
	require.NotNil(t, rs.TotalMarginUsageLimit)
	require.True(t, decimal.NewFromFloat(0.8).Equal(*rs.TotalMarginUsageLimit))
}

func TestParseOverrideAssetIDsAreUppercased(t *testing.T) {
	doc := []byte(`{"overrides": {"eth": {"cooldownMinutes": 5}}}`)

	rs, err := Parse(doc)
	require.NoError(t, err)
	require.Equal(t, 5, rs.For("eth").CooldownMinutes)
	require.Equal(t, 5, rs.For("ETH").CooldownMinutes)
	require.Contains(t, rs.ConfiguredAssets(), "ETH")
}

func TestParseEmptyDocumentIsValid(t *testing.T) {
	rs, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, AssetRule{}, rs.Defaults)
	require.Nil(t, rs.TotalMarginUsageLimit)
}
