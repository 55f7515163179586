// Package mood implements the pluggable mood classifier capability
// described by spec §4.3 step 5 and §9: a "predict + classes" interface
// with two concrete variants behind it.
package mood

import "github.com/djcrate/engine/internal/model"

// Features is the reduced feature vector the classifier predicates
// operate on.
type Features struct {
	Energy   float64
	Centroid float64
	BPM      float64
	Minor    bool
}

// Classifier is the capability every mood implementation exposes —
// higher layers (the extractor) depend only on this, never on a
// concrete type, per the "ML classifier plug" design note.
type Classifier interface {
	Predict(f Features) (model.MoodVector, model.MoodKind, float64)
	Classes() []model.MoodKind
}

type interval struct{ lo, hi float64 }

func (iv interval) contains(v float64) bool { return v >= iv.lo && v <= iv.hi }

type rule struct {
	mood     model.MoodKind
	energy   interval
	centroid interval
	bpm      interval
	// bias, when biasApplies is non-nil, adds a fixed amount to the raw
	// score if the predicate holds (the table's "minor bias" column).
	bias       float64
	biasApplies func(f Features) bool
}

// rules mirrors spec §4.3's mood table exactly.
var rules = []rule{
	{
		mood: model.MoodDark, energy: interval{1, 6}, centroid: interval{500, 3000}, bpm: interval{120, 140},
		bias: 0.14, biasApplies: func(f Features) bool { return f.Minor },
	},
	{
		mood: model.MoodEuphoric, energy: interval{7, 10}, centroid: interval{2000, 8000}, bpm: interval{125, 135},
		bias: 0.16, biasApplies: func(f Features) bool { return !f.Minor },
	},
	{
		mood: model.MoodDriving, energy: interval{6, 9}, centroid: interval{1500, 5000}, bpm: interval{120, 135},
	},
	{
		mood: model.MoodExperimental, energy: interval{2, 8}, centroid: interval{1000, 6000}, bpm: interval{80, 150},
	},
	{
		mood: model.MoodProgressive, energy: interval{5, 8}, centroid: interval{1500, 4000}, bpm: interval{120, 130},
	},
	{
		mood: model.MoodPeakTime, energy: interval{8, 10}, centroid: interval{2500, 7000}, bpm: interval{128, 138},
	},
}

const predicateScore = 0.3

// RuleClassifier is always available — it never fails and needs no
// loaded artifact, the fallback every higher layer can rely on.
type RuleClassifier struct{}

func NewRuleClassifier() RuleClassifier { return RuleClassifier{} }

func (RuleClassifier) Classes() []model.MoodKind {
	out := make([]model.MoodKind, len(model.AllMoods))
	copy(out, model.AllMoods[:])
	return out
}

func (RuleClassifier) Predict(f Features) (model.MoodVector, model.MoodKind, float64) {
	mv := make(model.MoodVector, len(rules))

	for _, r := range rules {
		score := 0.0
		maxScore := predicateScore * 3
		if r.energy.contains(f.Energy) {
			score += predicateScore
		}
		if r.centroid.contains(f.Centroid) {
			score += predicateScore
		}
		if r.bpm.contains(f.BPM) {
			score += predicateScore
		}
		if r.biasApplies != nil {
			maxScore += r.bias
			if r.biasApplies(f) {
				score += r.bias
			}
		}
		normalized := 0.0
		if maxScore > 0 {
			normalized = score / maxScore
		}
		mv[r.mood] = normalized
	}

	label := mv.Argmax()
	confidence := mv[label]
	return mv, label, confidence
}
