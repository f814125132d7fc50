package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestChangeDataWireShape(t *testing.T) {
	data := ChangeData{Price: map[PriceField]PricePair{
		PriceFieldBase: {Old: dec("100"), New: dec("80.5")},
		PriceFieldSale: {Old: nil, New: dec("70")},
	}}

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price": {"base": ["100", "80.5"], "sale": [null, "70"]}}`, string(raw))

	var back ChangeData
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Price[PriceFieldBase].Old.Equal(decimal.RequireFromString("100")))
	assert.Nil(t, back.Price[PriceFieldSale].Old)
	assert.True(t, back.Price[PriceFieldSale].New.Equal(decimal.RequireFromString("70")))
}

func TestChangeDataAvailableMarker(t *testing.T) {
	raw, err := json.Marshal(ChangeData{Available: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"available": true}`, string(raw))
}

func TestPricePairRejectsWrongArity(t *testing.T) {
	var p PricePair
	assert.Error(t, json.Unmarshal([]byte(`["100"]`), &p))
	assert.Error(t, json.Unmarshal([]byte(`["100", "90", "80"]`), &p))
}

func TestStockParamsRoundTripKeepsExtras(t *testing.T) {
	params := &StockParams{
		TypeCode:   "black",
		OptionCode: "42",
		OptionName: "42 EU",
		Extra:      map[string]json.RawMessage{"vendor_code": json.RawMessage(`"v-1"`)},
	}

	raw, err := json.Marshal(params)
	require.NoError(t, err)

	var back StockParams
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "black", back.TypeCode)
	assert.Equal(t, "42", back.OptionCode)
	assert.Equal(t, "42 EU", back.OptionName)
	assert.Equal(t, json.RawMessage(`"v-1"`), back.Extra["vendor_code"])
	assert.True(t, params.Equal(&back))
}

func TestComputeDiscount(t *testing.T) {
	d := ComputeDiscount(dec("100"), dec("80"))
	require.NotNil(t, d)
	assert.Equal(t, int64(20), *d)

	d = ComputeDiscount(dec("90"), dec("60"))
	require.NotNil(t, d)
	assert.Equal(t, int64(33), *d)

	assert.Nil(t, ComputeDiscount(nil, dec("80")))
	assert.Nil(t, ComputeDiscount(dec("0"), dec("80")))
}
