package product

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_Variation(t *testing.T) {
	p := Product{ID: 1, Variations: []Variation{
		{ID: 10, Label: "250 ml", Price: decimal.RequireFromString("29.90")},
		{ID: 11, Label: "500 ml", Price: decimal.RequireFromString("49.90")},
	}}
	v := p.Variation(11)
	require.NotNil(t, v)
	assert.Equal(t, "500 ml", v.Label)
	assert.Nil(t, p.Variation(99))
}

func TestProduct_PriceIsAStringInJSON(t *testing.T) {
	b, err := json.Marshal(Product{ID: 1, Name: "Cera", Price: decimal.RequireFromString("45.90")})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"price":"45.9"`)
}
