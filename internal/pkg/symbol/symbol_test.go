package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryAndDisplay(t *testing.T) {
	cases := []struct {
		in, query, display string
	}{
		{"005930.KS", "005930.KS", "005930"},
		{"035720.KQ", "035720.KQ", "035720"},
		{"BRK.B", "BRK-B", "BRK.B"},
		{"A.B.C", "A-B.C", "A.B.C"},
		{" AAPL ", "AAPL", "AAPL"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.query, Query(tc.in), tc.in)
		assert.Equal(t, tc.display, Display(tc.in), tc.in)
	}
	assert.True(t, IsKorean("005930.KS"))
	assert.False(t, IsKorean("KS"))
}

func TestYahooConverter(t *testing.T) {
	var c Converter = Yahoo
	assert.Equal(t, FormatYahoo, c.Format())
	assert.Equal(t, "BRK-B", c.ToSource("BRK.B"))
	assert.Equal(t, "005930", c.FromSource("005930.KS"))
}

func TestCleanKeepsOrderAndDuplicates(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT", "AAPL"}, Clean([]string{"AAPL", " ", "MSFT", "", "AAPL"}))
	assert.Nil(t, Clean(nil))
}
