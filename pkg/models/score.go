// Package models contains domain models for devark.
package models

// Scoring dimension weights. Fixed; the total score is the weighted sum of
// the five dimension scores, each in [0, 10].
const (
	WeightSpecificity   = 0.20
	WeightContext       = 0.25
	WeightIntent        = 0.25
	WeightActionability = 0.15
	WeightConstraints   = 0.15
)

// PromptScore holds the five quality-dimension scores for one prompt.
type PromptScore struct {
	Specificity   float64 `json:"specificity"`
	Context       float64 `json:"context"`
	Intent        float64 `json:"intent"`
	Actionability float64 `json:"actionability"`
	Constraints   float64 `json:"constraints"`
	Total         float64 `json:"total"`
	Feedback      string  `json:"feedback,omitempty"`
}

// ComputeTotal recomputes and stores the weighted total.
func (s *PromptScore) ComputeTotal() float64 {
	s.Total = s.Specificity*WeightSpecificity +
		s.Context*WeightContext +
		s.Intent*WeightIntent +
		s.Actionability*WeightActionability +
		s.Constraints*WeightConstraints
	return s.Total
}

// Clamp forces every dimension into [0, 10] before totalling.
func (s *PromptScore) Clamp() {
	clamp := func(v *float64) {
		if *v < 0 {
			*v = 0
		}
		if *v > 10 {
			*v = 10
		}
	}
	clamp(&s.Specificity)
	clamp(&s.Context)
	clamp(&s.Intent)
	clamp(&s.Actionability)
	clamp(&s.Constraints)
}
