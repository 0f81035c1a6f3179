package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchKind(t *testing.T) {
	kind, err := ParseSearchKind("FLIGHT")
	require.NoError(t, err)
	assert.Equal(t, KindFlight, kind)

	kind, err = ParseSearchKind("HOTEL")
	require.NoError(t, err)
	assert.Equal(t, KindHotel, kind)

	_, err = ParseSearchKind("CRUISE")
	assert.Error(t, err)
	_, err = ParseSearchKind("flight")
	assert.Error(t, err)
}

func TestSearchParamsNormalized(t *testing.T) {
	params := SearchParams{
		"origin":      "NYC",
		"adults":      float64(2),
		"children":    0,
		"return_date": "",
		"notes":       nil,
		"direct":      true,
	}
	norm := params.Normalized()

	assert.Equal(t, "NYC", norm["origin"])
	assert.Equal(t, "2", norm["adults"], "2.0 must normalize without a fractional part")
	assert.Equal(t, "0", norm["children"])
	assert.Equal(t, "true", norm["direct"])
	_, hasEmpty := norm["return_date"]
	assert.False(t, hasEmpty, "empty values are dropped")
	_, hasNil := norm["notes"]
	assert.False(t, hasNil, "nil values are dropped")
}

func TestSearchParamsSortedKeys(t *testing.T) {
	params := SearchParams{"c": "3", "a": "1", "b": "2"}
	assert.Equal(t, []string{"a", "b", "c"}, params.SortedKeys())
}

func TestSearchParamsValueScanRoundTrip(t *testing.T) {
	params := SearchParams{"origin": "NYC", "adults": float64(2)}

	value, err := params.Value()
	require.NoError(t, err)

	var restored SearchParams
	require.NoError(t, restored.Scan(value))
	assert.Equal(t, "NYC", restored.GetString("origin"))
	assert.Equal(t, 2, restored.GetInt("adults"))

	var fromNil SearchParams
	require.NoError(t, fromNil.Scan(nil))
	assert.Empty(t, fromNil)
}

func TestLowestOffer(t *testing.T) {
	mk := func(id, total string, stops, duration int) Offer {
		return Offer{
			ID:              id,
			Price:           Price{Total: decimal.RequireFromString(total), Currency: "USD"},
			Stops:           stops,
			DurationMinutes: duration,
		}
	}

	t.Run("empty slice", func(t *testing.T) {
		assert.Nil(t, LowestOffer(nil))
		assert.Nil(t, LowestOffer([]Offer{}))
	})

	t.Run("cheapest wins", func(t *testing.T) {
		offers := []Offer{mk("a", "350", 0, 300), mk("b", "290", 2, 500), mk("c", "310", 1, 400)}
		best := LowestOffer(offers)
		require.NotNil(t, best)
		assert.Equal(t, "b", best.ID)
	})

	t.Run("price tie broken by stops", func(t *testing.T) {
		offers := []Offer{mk("a", "290", 1, 300), mk("b", "290", 0, 400)}
		assert.Equal(t, "b", LowestOffer(offers).ID)
	})

	t.Run("stops tie broken by duration", func(t *testing.T) {
		offers := []Offer{mk("a", "290", 1, 400), mk("b", "290", 1, 350)}
		assert.Equal(t, "b", LowestOffer(offers).ID)
	})

	t.Run("full tie broken by offer id", func(t *testing.T) {
		offers := []Offer{mk("b", "290", 1, 400), mk("a", "290", 1, 400)}
		assert.Equal(t, "a", LowestOffer(offers).ID)
	})

	t.Run("decimal precision", func(t *testing.T) {
		offers := []Offer{mk("a", "289.991", 0, 300), mk("b", "289.99", 2, 500)}
		assert.Equal(t, "b", LowestOffer(offers).ID)
	})
}

func TestNewPriceChange(t *testing.T) {
	change := NewPriceChange(decimal.RequireFromString("200"), decimal.RequireFromString("180"))
	assert.InDelta(t, -10.0, change.Percent, 0.001)

	change = NewPriceChange(decimal.RequireFromString("150"), decimal.RequireFromString("165"))
	assert.InDelta(t, 10.0, change.Percent, 0.001)

	// no division by a zero baseline
	change = NewPriceChange(decimal.Zero, decimal.RequireFromString("165"))
	assert.Zero(t, change.Percent)
}

func TestParsePriorityTier(t *testing.T) {
	tier, ok := ParsePriorityTier("HIGH")
	require.True(t, ok)
	assert.Equal(t, TierHigh, tier)

	_, ok = ParsePriorityTier("URGENT")
	assert.False(t, ok)

	assert.Less(t, TierHigh.Rank(), TierMedium.Rank())
	assert.Less(t, TierMedium.Rank(), TierLow.Rank())
}
