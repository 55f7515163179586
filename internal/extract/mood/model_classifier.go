package mood

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/djcrate/engine/internal/model"
)

// ModelArtifact is the on-disk shape of a trained classifier, loaded
// rather than produced here — training new models from raw audio is
// out of scope. The shape mirrors the reference engine's ModelVersion
// bookkeeping (model type, version, accuracy) but carries the
// coefficients a gradient-boosted tree's leaf weights would use in the
// simplified linear-in-features form this loader supports.
type ModelArtifact struct {
	ModelType string                        `json:"model_type"`
	Version   string                        `json:"version"`
	Accuracy  float64                       `json:"accuracy"`
	Weights   map[string]map[string]float64 `json:"weights"` // mood name -> feature name -> weight
	Bias      map[string]float64            `json:"bias"`    // mood name -> bias term
}

// ModelClassifier wraps a loaded artifact. Construction fails closed: if
// no artifact is present, callers fall back to RuleClassifier rather
// than holding an unusable classifier.
type ModelClassifier struct {
	artifact ModelArtifact
}

// LoadModelClassifier reads a trained artifact from path. Returns
// (nil, false, nil) if the file does not exist — not an error, the
// expected state when no model has ever been trained.
func LoadModelClassifier(path string) (*ModelClassifier, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mood: read model artifact: %w", err)
	}

	var artifact ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, false, fmt.Errorf("mood: parse model artifact: %w", err)
	}
	return &ModelClassifier{artifact: artifact}, true, nil
}

func (m *ModelClassifier) Classes() []model.MoodKind {
	out := make([]model.MoodKind, len(model.AllMoods))
	copy(out, model.AllMoods[:])
	return out
}

func (m *ModelClassifier) Predict(f Features) (model.MoodVector, model.MoodKind, float64) {
	mv := make(model.MoodVector, len(model.AllMoods))
	vec := map[string]float64{
		"energy":   f.Energy,
		"centroid": f.Centroid,
		"bpm":      f.BPM,
	}
	if f.Minor {
		vec["minor"] = 1
	}

	for _, mk := range model.AllMoods {
		name := mk.String()
		weights := m.artifact.Weights[name]
		score := m.artifact.Bias[name]
		for feat, w := range weights {
			score += w * vec[feat]
		}
		mv[mk] = sigmoid(score)
	}

	label := mv.Argmax()
	return mv, label, mv[label]
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		z := math.Exp(-x)
		return 1 / (1 + z)
	}
	z := math.Exp(x)
	return z / (1 + z)
}
