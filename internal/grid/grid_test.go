package grid

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGrid(t *testing.T, w, h int, cells ...Token) *Grid {
	t.Helper()
	g, err := New(w, h, cells)
	require.NoError(t, err)
	return g
}

func TestNewFillsEmpty(t *testing.T) {
	g := mustGrid(t, 3, 2, "A", "", "B")
	assert.Equal(t, []Token{"A", Empty, "B", Empty, Empty, Empty}, g.Cells())

	_, err := New(0, 2, nil)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestGetSetBoundsChecked(t *testing.T) {
	g := mustGrid(t, 3, 2)
	require.NoError(t, g.Set(2, 1, "A"))
	tok, err := g.Get(2, 1)
	require.NoError(t, err)
	assert.Equal(t, Token("A"), tok)

	for _, c := range [][2]int{{-1, 0}, {3, 0}, {0, 2}, {0, -1}} {
		_, err := g.Get(c[0], c[1])
		assert.ErrorIs(t, err, ErrOutOfBounds)
		assert.ErrorIs(t, g.Set(c[0], c[1], "A"), ErrOutOfBounds)
	}
	_, err = g.At(6)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestCloneIsIndependent(t *testing.T) {
	g := mustGrid(t, 2, 2, "A", "B", "C", "D")
	c := g.Clone()
	require.True(t, g.Equal(c))
	require.NoError(t, c.Set(0, 0, "Z"))
	assert.False(t, g.Equal(c))
	tok, _ := g.Get(0, 0)
	assert.Equal(t, Token("A"), tok)
}

func TestShiftDropsContent(t *testing.T) {
	cases := []struct {
		dir  Direction
		want []Token
	}{
		{Up, []Token{"D", "E", "F", Empty, Empty, Empty}},
		{Down, []Token{Empty, Empty, Empty, "A", "B", "C"}},
		{Left, []Token{"B", "C", Empty, "E", "F", Empty}},
		{Right, []Token{Empty, "A", "B", Empty, "D", "E"}},
	}
	for _, tc := range cases {
		t.Run(tc.dir.String(), func(t *testing.T) {
			g := mustGrid(t, 3, 2, "A", "B", "C", "D", "E", "F")
			g.Shift(tc.dir)
			assert.Equal(t, tc.want, g.Cells())
		})
	}
}

func TestRotateWraps(t *testing.T) {
	cases := []struct {
		dir  Direction
		want []Token
	}{
		{Up, []Token{"D", "E", "F", "A", "B", "C"}},
		{Down, []Token{"D", "E", "F", "A", "B", "C"}},
		{Left, []Token{"B", "C", "A", "E", "F", "D"}},
		{Right, []Token{"C", "A", "B", "F", "D", "E"}},
	}
	for _, tc := range cases {
		t.Run(tc.dir.String(), func(t *testing.T) {
			g := mustGrid(t, 3, 2, "A", "B", "C", "D", "E", "F")
			g.Rotate(tc.dir)
			assert.Equal(t, tc.want, g.Cells())
		})
	}
}

func TestReflectHalfKeepsMiddleColumn(t *testing.T) {
	g := mustGrid(t, 3, 1, "A", "B", "C")
	g.ReflectHalf(Left)
	assert.Equal(t, []Token{"A", "B", "A"}, g.Cells())

	g = mustGrid(t, 3, 1, "A", "B", "C")
	g.ReflectHalf(Right)
	assert.Equal(t, []Token{"C", "B", "C"}, g.Cells())

	g = mustGrid(t, 1, 4, "A", "B", "C", "D")
	g.ReflectHalf(Up)
	assert.Equal(t, []Token{"A", "B", "B", "A"}, g.Cells())

	g = mustGrid(t, 1, 4, "A", "B", "C", "D")
	g.ReflectHalf(Down)
	assert.Equal(t, []Token{"D", "C", "C", "D"}, g.Cells())
}

func TestCopyHalfTranslates(t *testing.T) {
	g := mustGrid(t, 4, 1, "A", "B", "C", "D")
	require.NoError(t, g.CopyHalf(Left))
	assert.Equal(t, []Token{"A", "B", "A", "B"}, g.Cells())

	g = mustGrid(t, 5, 1, "A", "B", "C", "D", "E")
	require.NoError(t, g.CopyHalf(Right))
	assert.Equal(t, []Token{"D", "E", "C", "D", "E"}, g.Cells())

	g = mustGrid(t, 1, 1, "A")
	require.NoError(t, g.CopyHalf(Up))
	assert.Equal(t, []Token{"A"}, g.Cells())
}

func TestCopyAreaOverlapUsesOriginal(t *testing.T) {
	g := mustGrid(t, 4, 1, "A", "B", "C", "D")
	require.NoError(t, g.CopyArea(Rect{X: 0, Y: 0, W: 3, H: 1}, 1, 0))
	assert.Equal(t, []Token{"A", "A", "B", "C"}, g.Cells())

	assert.ErrorIs(t, g.CopyArea(Rect{X: 0, Y: 0, W: 3, H: 1}, 2, 0), ErrOutOfBounds)
}

func TestSwap(t *testing.T) {
	g := mustGrid(t, 2, 2, "A", "B", "C", "D")
	require.NoError(t, g.Swap(0, 0, 1, 1))
	assert.Equal(t, []Token{"D", "B", "C", "A"}, g.Cells())
	assert.ErrorIs(t, g.Swap(0, 0, 2, 2), ErrOutOfBounds)
}

func TestParseAndString(t *testing.T) {
	src := "# comment\nA B C\n\nD  E\tF\n"
	g, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 3, g.Width())
	assert.Equal(t, 2, g.Height())
	assert.Equal(t, "A B C\nD E F\n", g.String())

	_, err = Parse(strings.NewReader("A B\nC D E\n"))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	g, err = Parse(strings.NewReader("A B\nC\n"))
	require.NoError(t, err)
	assert.Equal(t, "A B\n", g.String())
}

func TestJSONRoundTrip(t *testing.T) {
	g := mustGrid(t, 2, 1, "A", "B")
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"width":2,"height":1,"data":["A","B"]}`, string(data))

	var out Grid
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, g.Equal(&out))

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"width":2,"height":2,"data":["A"]}`), &out), ErrDimensionMismatch)
}
