package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minyeamer/gspread/internal/grid"
)

func row(vals ...grid.Value) []grid.Value { return vals }

func TestGroupByKeepsFirstSeenOrder(t *testing.T) {
	rows := [][]grid.Value{
		row(grid.String("A"), grid.Int(1)),
		row(grid.String("B"), grid.Int(2)),
		row(grid.String("A"), grid.Int(3)),
	}
	g, err := GroupBy(rows, 0, []int{1})
	require.NoError(t, err)

	assert.Equal(t, 2, g.Len())
	keys := g.Keys()
	assert.Equal(t, "A", keys[0].String())
	assert.Equal(t, "B", keys[1].String())

	a, ok := g.Get(grid.String("A"))
	require.True(t, ok)
	require.Len(t, a, 2)
	assert.Equal(t, "1", a[0][0].String())
	assert.Equal(t, "3", a[1][0].String())

	b, ok := g.Get(grid.String("B"))
	require.True(t, ok)
	assert.Len(t, b, 1)
}

func TestGroupByIsTypeSensitive(t *testing.T) {
	rows := [][]grid.Value{
		row(grid.Int(1), grid.String("number")),
		row(grid.String("1"), grid.String("text")),
	}
	g, err := GroupBy(rows, 0, []int{1})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	got, ok := g.Get(grid.String("1"))
	require.True(t, ok)
	assert.Equal(t, "text", got[0][0].String())
}

func TestGroupByRejectsOutOfRangeColumns(t *testing.T) {
	rows := [][]grid.Value{row(grid.String("A"), grid.Int(1))}
	_, err := GroupBy(rows, 2, []int{1})
	assert.Error(t, err)
	_, err = GroupBy(rows, 0, []int{1, 5})
	assert.Error(t, err)
	_, err = GroupBy(rows, -1, []int{0})
	assert.Error(t, err)
	_, err = GroupBy(rows, 0, nil)
	assert.Error(t, err)
}

func TestGroupBySkipsEmptyKeys(t *testing.T) {
	rows := [][]grid.Value{
		row(grid.Empty, grid.Int(9)),
		row(grid.String("A"), grid.Int(1)),
	}
	g, err := GroupBy(rows, 0, []int{1})
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
	_, ok := g.Get(grid.Empty)
	assert.False(t, ok)
}

func TestWindowTakesNewestAndReverses(t *testing.T) {
	// newest first: d5..d1
	entries := []Entry{
		{grid.String("d5")}, {grid.String("d4")}, {grid.String("d3")}, {grid.String("d2")}, {grid.String("d1")},
	}
	got := Window(entries, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "d4", got[0][0].String())
	assert.Equal(t, "d5", got[1][0].String())
	assert.Equal(t, "d5", entries[0][0].String(), "input untouched")

	all := Window(entries, 0)
	require.Len(t, all, 5)
	assert.Equal(t, "d1", all[0][0].String())

	assert.Len(t, Window(entries, 50), 5)
	assert.Empty(t, Window(nil, 3))
}
