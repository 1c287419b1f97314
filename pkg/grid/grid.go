package grid

import (
	"errors"
	"math"
	"sync"
)

// MaxRange is the default cell width and therefore the largest
// communication range an index can serve completely.
const MaxRange = 50.0

// ErrNotBuilt is returned by Query when nothing has been registered since
// the last Reset. Continuing would silently under-report neighbours.
var ErrNotBuilt = errors.New("grid: index queried before it was built for this tick")

type Point struct {
	X, Y float64
}

// Dist2 is the squared Euclidean distance between p and q.
func (p Point) Dist2(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

type Cell struct {
	I, J int
}

type entry[T any] struct {
	id  int
	pos Point
	v   T
}

// Index is a spatial hash bucketing entries into square cells of side
// cellSize. It is rebuilt every tick: Reset, Register everything, then
// serve read-only queries.
type Index[T any] struct {
	mu       sync.RWMutex
	cellSize float64
	cells    map[Cell][]entry[T]
	n        int
	built    bool
}

func New[T any](cellSize float64) *Index[T] {
	if cellSize <= 0 {
		cellSize = MaxRange
	}
	return &Index[T]{
		cellSize: cellSize,
		cells:    make(map[Cell][]entry[T]),
	}
}

func (x *Index[T]) CellSize() float64 { return x.cellSize }

// CellOf maps p to its cell. Negative coordinates clamp to cell 0.
func (x *Index[T]) CellOf(p Point) Cell {
	i := int(math.Floor(p.X / x.cellSize))
	j := int(math.Floor(p.Y / x.cellSize))
	return Cell{I: max(0, i), J: max(0, j)}
}

// Reset drops every entry. Cell slices are kept for reuse.
func (x *Index[T]) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	for c, es := range x.cells {
		clear(es)
		x.cells[c] = es[:0]
	}
	x.n = 0
	x.built = false
}

func (x *Index[T]) Register(id int, p Point, v T) {
	x.mu.Lock()
	defer x.mu.Unlock()
	c := x.CellOf(p)
	x.cells[c] = append(x.cells[c], entry[T]{id: id, pos: p, v: v})
	x.n++
	x.built = true
}

func (x *Index[T]) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.n
}

// Query returns every entry other than self within radius of p. Only the
// 3x3 block of cells around p is scanned, so radius must not exceed the
// cell size; larger radii give incomplete results.
func (x *Index[T]) Query(self int, p Point, radius float64) ([]T, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.built {
		return nil, ErrNotBuilt
	}
	c := x.CellOf(p)
	r2 := radius * radius
	var out []T
	for dj := -1; dj <= 1; dj++ {
		if c.J+dj < 0 {
			continue
		}
		for di := -1; di <= 1; di++ {
			if c.I+di < 0 {
				continue
			}
			for _, e := range x.cells[Cell{I: c.I + di, J: c.J + dj}] {
				if e.id == self {
					continue
				}
				if p.Dist2(e.pos) <= r2 {
					out = append(out, e.v)
				}
			}
		}
	}
	return out, nil
}
