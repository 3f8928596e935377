package scoring

import (
	"errors"
	"math"
)

var ErrUnknownLocation = errors.New("unknown location token")

// Token names a place in the world. Actors exchange tokens on the wire and
// never coordinates; the oracle owns the geometry.
type Token string

// Point is a resolved world coordinate.
type Point struct {
	X float64
	Y float64
}

// Oracle resolves location tokens to coordinates.
type Oracle interface {
	Resolve(token Token) (Point, error)
}

// Scorer ranks an accepting responder for a requester: lower is better. A
// scorer must be deterministic and total over resolvable tokens, so that
// every requester ranks the same offers the same way.
type Scorer interface {
	Score(responder, requester Token) (float64, error)
}

// Euclidean scores by straight-line distance between the two locations.
type Euclidean struct {
	oracle Oracle
}

func NewEuclidean(oracle Oracle) *Euclidean {
	return &Euclidean{oracle: oracle}
}

func (e *Euclidean) Score(responder, requester Token) (float64, error) {
	a, err := e.oracle.Resolve(responder)
	if err != nil {
		return 0, err
	}
	b, err := e.oracle.Resolve(requester)
	if err != nil {
		return 0, err
	}
	return math.Hypot(a.X-b.X, a.Y-b.Y), nil
}
