// Package mobility provides the movement processes that drive agent
// positions. Agents only read Position and Waiting; the scheduler calls Move.
package mobility

import (
	"math"

	"github.com/ryandielhenn/dtngossip/pkg/grid"
)

// Model is a movement process owned by the scheduler.
type Model interface {
	Position() grid.Point
	Waiting() bool
	Move(delta float64)
}

// Rand is the subset of *rand.Rand the models need.
type Rand interface {
	Float64() float64
}

// Static never moves.
type Static struct {
	P grid.Point
}

func NewStatic(x, y float64) *Static { return &Static{P: grid.Point{X: x, Y: y}} }

func (s *Static) Position() grid.Point { return s.P }
func (s *Static) Waiting() bool        { return false }
func (s *Static) Move(float64)         {}

// WalkParams configures RandomWalk. Speeds are distance per unit time.
type WalkParams struct {
	Field    float64
	MinSpeed float64
	MaxSpeed float64
	// PauseProb is the chance, per move, of stopping instead of moving.
	PauseProb float64
	// PauseTime is how long a pause lasts.
	PauseTime float64
}

func DefaultWalkParams() WalkParams {
	return WalkParams{
		Field:    1000,
		MinSpeed: 0.5,
		MaxSpeed: 1.0,
	}
}

// RandomWalk picks a fresh heading and speed every move and reflects off
// the field edges, so positions always stay inside [0, Field].
type RandomWalk struct {
	p       WalkParams
	r       Rand
	cur     grid.Point
	waitFor float64
}

// NewRandomWalk places the walker uniformly at random inside the field.
func NewRandomWalk(p WalkParams, r Rand) *RandomWalk {
	return &RandomWalk{
		p:   p,
		r:   r,
		cur: grid.Point{X: r.Float64() * p.Field, Y: r.Float64() * p.Field},
	}
}

func (w *RandomWalk) Position() grid.Point { return w.cur }

func (w *RandomWalk) Waiting() bool { return w.waitFor > 0 }

func (w *RandomWalk) Move(delta float64) {
	if w.waitFor > 0 {
		w.waitFor -= delta
		return
	}
	if w.p.PauseProb > 0 && w.r.Float64() < w.p.PauseProb {
		w.waitFor = w.p.PauseTime
		return
	}
	speed := w.p.MinSpeed + w.r.Float64()*(w.p.MaxSpeed-w.p.MinSpeed)
	theta := w.r.Float64() * 2 * math.Pi
	dist := speed * delta
	w.cur = grid.Point{
		X: reflect(w.cur.X+dist*math.Cos(theta), w.p.Field),
		Y: reflect(w.cur.Y+dist*math.Sin(theta), w.p.Field),
	}
}

// reflect folds v back into [0, size].
func reflect(v, size float64) float64 {
	if size <= 0 {
		return 0
	}
	period := 2 * size
	v = math.Mod(v, period)
	if v < 0 {
		v += period
	}
	if v > size {
		v = period - v
	}
	return v
}
