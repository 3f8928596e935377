package scoring

// Factors supplies the non-geometric signals for a responder's location.
type Factors interface {
	// Reliability is in [0,1]; higher means fewer failed deliveries.
	Reliability(responder Token) float64
	// UnitCost is the responder's price signal, in arbitrary units.
	UnitCost(responder Token) float64
}

type Weights struct {
	Distance    float64
	Reliability float64
	Cost        float64
}

// Composite blends distance with reliability and cost into a single rank.
// Reliability is inverted so that every term still reads lower-is-better.
type Composite struct {
	distance Scorer
	factors  Factors
	weights  Weights
}

func NewComposite(distance Scorer, factors Factors, weights Weights) *Composite {
	return &Composite{
		distance: distance,
		factors:  factors,
		weights:  weights,
	}
}

func (c *Composite) Score(responder, requester Token) (float64, error) {
	d, err := c.distance.Score(responder, requester)
	if err != nil {
		return 0, err
	}
	unreliability := 1 - clamp01(c.factors.Reliability(responder))
	return c.weights.Distance*d +
		c.weights.Reliability*unreliability +
		c.weights.Cost*c.factors.UnitCost(responder), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
