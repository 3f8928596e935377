package scoring

// OverrideRecord pins the score for one responder/requester pair.
type OverrideRecord struct {
	OverrideKey
	Score float64
}

type OverrideKey struct {
	Responder Token
	Requester Token
}

type overrideScorer struct {
	orig Scorer
	recs map[OverrideKey]float64
}

// NewOverrideScorer answers from the pinned records and falls back to orig
// for every other pair. Operators use it to steer selection away from a
// responder without touching the geometry.
func NewOverrideScorer(orig Scorer, records []OverrideRecord) Scorer {
	recs := make(map[OverrideKey]float64, len(records))
	for _, rec := range records {
		recs[rec.OverrideKey] = rec.Score
	}
	return &overrideScorer{
		orig: orig,
		recs: recs,
	}
}

func (s *overrideScorer) Score(responder, requester Token) (float64, error) {
	if score, ok := s.recs[OverrideKey{Responder: responder, Requester: requester}]; ok {
		return score, nil
	}
	return s.orig.Score(responder, requester)
}
