// Package world models the flat grid the fleet lives on. Wire messages carry
// opaque location tokens ("node-12"); the grid resolves them back into
// coordinates for distance scoring.
package world

import (
	"math/rand"
	"strconv"
	"strings"

	"supplysim/internal/domain/scoring"
	"supplysim/internal/pkg/errs"
)

const tokenPrefix = "node-"

var ErrBadDimensions = errs.New("grid dimensions must be positive")

// Grid is a width x height plane of numbered cells. Cell n sits at
// (n mod width, n div width), so "node-0" is the top-left corner.
type Grid struct {
	width  int
	height int
}

var _ scoring.Oracle = (*Grid)(nil)

func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errs.Wrap(ErrBadDimensions, strconv.Itoa(width)+"x"+strconv.Itoa(height))
	}
	return &Grid{width: width, height: height}, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }
func (g *Grid) Cells() int  { return g.width * g.height }

// Token names the cell at (x, y).
func (g *Grid) Token(x, y int) (scoring.Token, error) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return "", scoring.ErrUnknownLocation
	}
	return scoring.Token(tokenPrefix + strconv.Itoa(y*g.width+x)), nil
}

// Resolve maps a token back to its coordinates. Tokens outside the grid, and
// strings that are not tokens at all, fail with ErrUnknownLocation.
func (g *Grid) Resolve(token scoring.Token) (scoring.Point, error) {
	rest, ok := strings.CutPrefix(string(token), tokenPrefix)
	if !ok {
		return scoring.Point{}, scoring.ErrUnknownLocation
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || n >= g.Cells() {
		return scoring.Point{}, scoring.ErrUnknownLocation
	}
	return scoring.Point{
		X: float64(n % g.width),
		Y: float64(n / g.width),
	}, nil
}

// RandomToken picks a uniformly random cell. Actors may share a cell; two
// actors on the same node are simply at distance zero.
func (g *Grid) RandomToken(rng *rand.Rand) scoring.Token {
	n := rng.Intn(g.Cells())
	return scoring.Token(tokenPrefix + strconv.Itoa(n))
}
