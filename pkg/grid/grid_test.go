package grid

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBeforeRegisterFails(t *testing.T) {
	x := New[int](50)
	_, err := x.Query(0, Point{}, 10)
	require.ErrorIs(t, err, ErrNotBuilt)

	x.Register(1, Point{X: 1, Y: 1}, 1)
	_, err = x.Query(1, Point{X: 1, Y: 1}, 10)
	require.NoError(t, err)

	// Reset puts the index back into the unbuilt state
	x.Reset()
	_, err = x.Query(1, Point{X: 1, Y: 1}, 10)
	require.ErrorIs(t, err, ErrNotBuilt)
}

func TestCellOfClampsNegative(t *testing.T) {
	x := New[int](50)
	for p, want := range map[Point]Cell{
		{X: 0, Y: 0}:      {0, 0},
		{X: 49.9, Y: 50}:  {0, 1},
		{X: 120, Y: 260}:  {2, 5},
		{X: -3, Y: 75}:    {0, 1},
		{X: -80, Y: -0.1}: {0, 0},
	} {
		assert.Equal(t, want, x.CellOf(p), "CellOf(%v)", p)
	}
}

func TestQueryFiltersByExactDistance(t *testing.T) {
	x := New[int](50)
	x.Register(1, Point{X: 0, Y: 0}, 1)
	x.Register(2, Point{X: 30, Y: 0}, 2)
	x.Register(3, Point{X: 60, Y: 0}, 3)
	x.Register(4, Point{X: 30, Y: 40}, 4) // exactly 50 from 1

	got, err := x.Query(1, Point{X: 0, Y: 0}, 50)
	require.NoError(t, err)
	slices.Sort(got)
	assert.Equal(t, []int{2, 4}, got)
}

func TestQueryExcludesSelf(t *testing.T) {
	x := New[int](50)
	x.Register(7, Point{X: 10, Y: 10}, 7)

	got, err := x.Query(7, Point{X: 10, Y: 10}, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResetDropsStaleEntries(t *testing.T) {
	x := New[int](50)
	x.Register(1, Point{X: 0, Y: 0}, 1)
	x.Register(2, Point{X: 10, Y: 0}, 2)

	x.Reset()
	x.Register(1, Point{X: 0, Y: 0}, 1)
	x.Register(2, Point{X: 400, Y: 400}, 2)

	got, err := x.Query(1, Point{X: 0, Y: 0}, 50)
	require.NoError(t, err)
	assert.Empty(t, got, "entry from the previous tick leaked")
	assert.Equal(t, 2, x.Len())
}

// Brute force comparison over random fields: the 3x3 scan must find exactly
// the entries within range, and the relation must be symmetric.
func TestQueryMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	const (
		n     = 300
		field = 600.0
		rng   = 50.0
	)
	pts := make([]Point, n+1)
	x := New[int](rng)
	for id := 1; id <= n; id++ {
		pts[id] = Point{X: r.Float64() * field, Y: r.Float64() * field}
		x.Register(id, pts[id], id)
	}

	near := make([]map[int]bool, n+1)
	for id := 1; id <= n; id++ {
		got, err := x.Query(id, pts[id], rng)
		require.NoError(t, err)
		near[id] = map[int]bool{}
		for _, o := range got {
			near[id][o] = true
		}

		for o := 1; o <= n; o++ {
			if o == id {
				continue
			}
			within := pts[id].Dist2(pts[o]) <= rng*rng
			if within != near[id][o] {
				t.Fatalf("Query(%d) membership of %d = %v, want %v", id, o, near[id][o], within)
			}
		}
	}

	for a := 1; a <= n; a++ {
		for b := range near[a] {
			if !near[b][a] {
				t.Fatalf("asymmetric: %d sees %d but not the reverse", a, b)
			}
		}
	}
}

func TestQueryOrderIsDeterministic(t *testing.T) {
	build := func() *Index[int] {
		x := New[int](50)
		for id, p := range []Point{{10, 10}, {20, 10}, {60, 10}, {15, 55}, {5, 5}} {
			x.Register(id+1, p, id+1)
		}
		return x
	}
	a, err := build().Query(0, Point{X: 20, Y: 20}, 50)
	require.NoError(t, err)
	b, err := build().Query(0, Point{X: 20, Y: 20}, 50)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
