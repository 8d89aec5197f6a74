package grid

import "fmt"

// Direction is one of the four axis directions.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every Direction in draw order.
var Directions = [...]Direction{Up, Down, Left, Right}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Rect is an axis-aligned area with its top-left corner at (X,Y).
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Cells() int { return r.W * r.H }

func (g *Grid) containsRect(r Rect) bool {
	return r.W > 0 && r.H > 0 && r.X >= 0 && r.Y >= 0 && r.X+r.W <= g.width && r.Y+r.H <= g.height
}

// Shift translates every cell one step in dir. Content falls off the leading
// edge and the vacated edge becomes Empty.
func (g *Grid) Shift(dir Direction) {
	g.translate(dir, false)
}

// Rotate translates every cell one step in dir, wrapping the cells that fall
// off onto the vacated edge.
func (g *Grid) Rotate(dir Direction) {
	g.translate(dir, true)
}

func (g *Grid) translate(dir Direction, wrap bool) {
	w, h := g.width, g.height
	switch dir {
	case Up:
		for x := 0; x < w; x++ {
			first := g.cells[x]
			for y := 0; y < h-1; y++ {
				g.cells[y*w+x] = g.cells[(y+1)*w+x]
			}
			g.cells[(h-1)*w+x] = edge(first, wrap)
		}
	case Down:
		for x := 0; x < w; x++ {
			last := g.cells[(h-1)*w+x]
			for y := h - 1; y > 0; y-- {
				g.cells[y*w+x] = g.cells[(y-1)*w+x]
			}
			g.cells[x] = edge(last, wrap)
		}
	case Left:
		for y := 0; y < h; y++ {
			row := g.cells[y*w : (y+1)*w]
			first := row[0]
			copy(row, row[1:])
			row[w-1] = edge(first, wrap)
		}
	case Right:
		for y := 0; y < h; y++ {
			row := g.cells[y*w : (y+1)*w]
			last := row[w-1]
			copy(row[1:], row[:w-1])
			row[0] = edge(last, wrap)
		}
	}
}

func edge(t Token, wrap bool) Token {
	if wrap {
		return t
	}
	return Empty
}

// Swap exchanges two cells.
func (g *Grid) Swap(x1, y1, x2, y2 int) error {
	if !g.inBounds(x1, y1) || !g.inBounds(x2, y2) {
		return fmt.Errorf("%w: swap (%d,%d)<->(%d,%d)", ErrOutOfBounds, x1, y1, x2, y2)
	}
	i, j := y1*g.width+x1, y2*g.width+x2
	g.cells[i], g.cells[j] = g.cells[j], g.cells[i]
	return nil
}

// ReflectHalf mirrors the half on side `from` onto the opposite half,
// overwriting it. The middle row or column of an odd dimension is kept.
func (g *Grid) ReflectHalf(from Direction) {
	w, h := g.width, g.height
	switch from {
	case Left:
		for y := 0; y < h; y++ {
			for x := 0; x < w/2; x++ {
				g.cells[y*w+(w-1-x)] = g.cells[y*w+x]
			}
		}
	case Right:
		for y := 0; y < h; y++ {
			for x := 0; x < w/2; x++ {
				g.cells[y*w+x] = g.cells[y*w+(w-1-x)]
			}
		}
	case Up:
		for x := 0; x < w; x++ {
			for y := 0; y < h/2; y++ {
				g.cells[(h-1-y)*w+x] = g.cells[y*w+x]
			}
		}
	case Down:
		for x := 0; x < w; x++ {
			for y := 0; y < h/2; y++ {
				g.cells[y*w+x] = g.cells[(h-1-y)*w+x]
			}
		}
	}
}

// CopyArea copies src to the rectangle of the same size at (toX,toY). The
// source is buffered first, so overlapping areas copy the original content.
func (g *Grid) CopyArea(src Rect, toX, toY int) error {
	dst := Rect{X: toX, Y: toY, W: src.W, H: src.H}
	if !g.containsRect(src) || !g.containsRect(dst) {
		return fmt.Errorf("%w: copy %+v to (%d,%d)", ErrOutOfBounds, src, toX, toY)
	}
	buf := make([]Token, 0, src.Cells())
	for y := src.Y; y < src.Y+src.H; y++ {
		buf = append(buf, g.cells[y*g.width+src.X:y*g.width+src.X+src.W]...)
	}
	for dy := 0; dy < src.H; dy++ {
		copy(g.cells[(toY+dy)*g.width+toX:], buf[dy*src.W:(dy+1)*src.W])
	}
	return nil
}

// CopyHalf translates the floor(dim/2) block on side `from` onto the opposite
// side without mirroring. It is a no-op when that block is empty.
func (g *Grid) CopyHalf(from Direction) error {
	w, h := g.width, g.height
	hw, hh := w/2, h/2
	switch from {
	case Left:
		if hw == 0 {
			return nil
		}
		return g.CopyArea(Rect{X: 0, Y: 0, W: hw, H: h}, (w+1)/2, 0)
	case Right:
		if hw == 0 {
			return nil
		}
		return g.CopyArea(Rect{X: (w + 1) / 2, Y: 0, W: hw, H: h}, 0, 0)
	case Up:
		if hh == 0 {
			return nil
		}
		return g.CopyArea(Rect{X: 0, Y: 0, W: w, H: hh}, 0, (h+1)/2)
	case Down:
		if hh == 0 {
			return nil
		}
		return g.CopyArea(Rect{X: 0, Y: (h + 1) / 2, W: w, H: hh}, 0, 0)
	}
	return nil
}
