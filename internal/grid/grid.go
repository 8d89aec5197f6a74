package grid

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Token identifies the component type held by a cell.
type Token string

// Empty marks a cell without a component.
const Empty Token = "XX"

var (
	ErrOutOfBounds       = errors.New("grid coordinates out of bounds")
	ErrDimensionMismatch = errors.New("grid dimensions mismatch")
	ErrInvalidSize       = errors.New("grid size must be positive")
)

// Grid is a fixed-size rectangular arrangement of tokens stored row-major.
type Grid struct {
	width  int
	height int
	cells  []Token
}

// New builds a width x height grid. Cells missing from cells, or holding the
// zero token, are set to Empty.
func New(width, height int, cells []Token) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	g := &Grid{width: width, height: height, cells: make([]Token, width*height)}
	for i := range g.cells {
		if i < len(cells) && cells[i] != "" {
			g.cells[i] = cells[i]
		} else {
			g.cells[i] = Empty
		}
	}
	return g, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }
func (g *Grid) Len() int    { return len(g.cells) }

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

func (g *Grid) Get(x, y int) (Token, error) {
	if !g.inBounds(x, y) {
		return "", fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, g.width, g.height)
	}
	return g.cells[y*g.width+x], nil
}

func (g *Grid) Set(x, y int, t Token) error {
	if !g.inBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, g.width, g.height)
	}
	g.cells[y*g.width+x] = t
	return nil
}

// At returns the cell at linear row-major index i.
func (g *Grid) At(i int) (Token, error) {
	if i < 0 || i >= len(g.cells) {
		return "", fmt.Errorf("%w: index %d of %d", ErrOutOfBounds, i, len(g.cells))
	}
	return g.cells[i], nil
}

func (g *Grid) SetAt(i int, t Token) error {
	if i < 0 || i >= len(g.cells) {
		return fmt.Errorf("%w: index %d of %d", ErrOutOfBounds, i, len(g.cells))
	}
	g.cells[i] = t
	return nil
}

// Cells returns a copy of the row-major cell data.
func (g *Grid) Cells() []Token {
	out := make([]Token, len(g.cells))
	copy(out, g.cells)
	return out
}

// Clone copies cell contents into a new grid.
func (g *Grid) Clone() *Grid {
	return &Grid{width: g.width, height: g.height, cells: g.Cells()}
}

func (g *Grid) Equal(other *Grid) bool {
	if other == nil || g.width != other.width || g.height != other.height {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// SameSize reports whether both grids share width and height.
func (g *Grid) SameSize(other *Grid) bool {
	return other != nil && g.width == other.width && g.height == other.height
}

// Counts tallies token occurrences.
func (g *Grid) Counts() map[Token]int {
	counts := make(map[Token]int)
	for _, t := range g.cells {
		counts[t]++
	}
	return counts
}

// String renders one row per line with tokens separated by spaces.
func (g *Grid) String() string {
	var b strings.Builder
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if x > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(string(g.cells[y*g.width+x]))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Parse reads the text form produced by String. Lines shorter than two
// characters and lines starting with '#' are skipped; the first row sets the
// width.
func Parse(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	var rows [][]Token
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		row := make([]Token, len(fields))
		for i, f := range fields {
			row[i] = Token(f)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidSize)
	}
	width := len(rows[0])
	cells := make([]Token, 0, width*len(rows))
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrDimensionMismatch, i, len(row), width)
		}
		cells = append(cells, row...)
	}
	return New(width, len(rows), cells)
}

type jsonGrid struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Data   []Token `json:"data"`
}

func (g *Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonGrid{Width: g.width, Height: g.height, Data: g.cells})
}

func (g *Grid) UnmarshalJSON(data []byte) error {
	var raw jsonGrid
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Width*raw.Height != len(raw.Data) {
		return fmt.Errorf("%w: %dx%d with %d cells", ErrDimensionMismatch, raw.Width, raw.Height, len(raw.Data))
	}
	parsed, err := New(raw.Width, raw.Height, raw.Data)
	if err != nil {
		return err
	}
	*g = *parsed
	return nil
}
