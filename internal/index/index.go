// Package index implements the similarity index (C5): fixed-order
// feature vectors, z-score standardization, and k-NN neighbor search
// over the standardized space.
package index

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/djcrate/engine/internal/model"
)

// Dims is the fixed width of the feature vector spec §4.5 defines.
const Dims = 10

// Vector derives the fixed-order feature vector for a FeatureRecord:
// [ bpm/200, key_numeric, energy/10, mood_dark, mood_euphoric,
//   mood_driving, mood_experimental, centroid/8000, onset_density/10,
//   harmonic_ratio ].
func Vector(r model.FeatureRecord) [Dims]float64 {
	var v [Dims]float64
	v[0] = r.BPM / 200
	v[1] = keyNumeric(r.Camelot)
	v[2] = r.EnergyScore / 10
	v[3] = r.Mood[model.MoodDark]
	v[4] = r.Mood[model.MoodEuphoric]
	v[5] = r.Mood[model.MoodDriving]
	v[6] = r.Mood[model.MoodExperimental]
	v[7] = r.SpectralCentroidHz / 8000
	v[8] = r.OnsetDensityPerS / 10
	v[9] = r.HarmonicRatio
	return v
}

// keyNumeric maps (number, letter) into [0,1]: (number-1)/11, shifted
// into the upper half when the letter is A, matching spec §4.5 exactly.
func keyNumeric(c model.CamelotCode) float64 {
	base := float64(c.Number-1) / 11
	if c.Letter == 'A' {
		base += 1
	}
	return base / 2
}

// Scaler holds the per-column (mean, std) computed over an indexed
// population; queries are standardized with the same parameters.
type Scaler struct {
	Mean [Dims]float64
	Std  [Dims]float64
}

func fitScaler(vectors [][Dims]float64) Scaler {
	var s Scaler
	if len(vectors) == 0 {
		for i := range s.Std {
			s.Std[i] = 1
		}
		return s
	}
	col := make([]float64, len(vectors))
	for d := 0; d < Dims; d++ {
		for i, v := range vectors {
			col[i] = v[d]
		}
		mean, std := stat.MeanStdDev(col, nil)
		s.Mean[d] = mean
		if std == 0 {
			std = 1
		}
		s.Std[d] = std
	}
	return s
}

func (s Scaler) standardize(v [Dims]float64) [Dims]float64 {
	var out [Dims]float64
	for i := range v {
		out[i] = (v[i] - s.Mean[i]) / s.Std[i]
	}
	return out
}

// entry is one indexed track: its id and standardized vector.
type entry struct {
	id       model.TrackId
	standard [Dims]float64
}

// Index is an immutable snapshot of the standardized population. Any
// mutation to the track set requires a full Rebuild — there is no
// incremental-update contract (spec §4.5).
type Index struct {
	scaler  Scaler
	entries []entry
	byID    map[model.TrackId]int
}

// Build constructs a fresh index from a batch of records. Call Build
// again (producing a new *Index) whenever the track set changes;
// concurrent queries hold their own snapshot reference so rebuilding
// never races a reader (spec's copy-on-rebuild policy, §5).
func Build(records []model.FeatureRecord) *Index {
	vectors := make([][Dims]float64, len(records))
	for i, r := range records {
		vectors[i] = Vector(r)
	}
	scaler := fitScaler(vectors)

	entries := make([]entry, len(records))
	byID := make(map[model.TrackId]int, len(records))
	for i, r := range records {
		entries[i] = entry{id: r.TrackID, standard: scaler.standardize(vectors[i])}
		byID[r.TrackID] = i
	}

	return &Index{scaler: scaler, entries: entries, byID: byID}
}

// Neighbor is one k-NN result: a track id and its Euclidean distance in
// standardized space.
type Neighbor struct {
	TrackID  model.TrackId
	Distance float64
}

// Neighbors returns the k nearest tracks to trackID, excluding trackID
// itself. Brute force is acceptable under 1000 entries per spec; this
// implementation is brute force throughout; callers operating on
// larger pools should shard externally (see solver candidate capping).
func (idx *Index) Neighbors(trackID model.TrackId, k int) []Neighbor {
	i, ok := idx.byID[trackID]
	if !ok {
		return nil
	}
	return idx.neighborsOf(idx.entries[i].standard, trackID, k)
}

// NeighborsOfRecord standardizes an arbitrary record (not necessarily
// indexed) with this index's scaler and returns its k nearest indexed
// neighbors — used by suggestion queries against a base track.
func (idx *Index) NeighborsOfRecord(r model.FeatureRecord, k int) []Neighbor {
	standard := idx.scaler.standardize(Vector(r))
	return idx.neighborsOf(standard, r.TrackID, k)
}

func (idx *Index) neighborsOf(standard [Dims]float64, exclude model.TrackId, k int) []Neighbor {
	out := make([]Neighbor, 0, len(idx.entries))
	for _, e := range idx.entries {
		if e.id == exclude {
			continue
		}
		out = append(out, Neighbor{TrackID: e.id, Distance: euclidean(standard, e.standard)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].TrackID < out[j].TrackID // deterministic tie-break
	})
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

func euclidean(a, b [Dims]float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Size reports how many tracks are currently indexed.
func (idx *Index) Size() int { return len(idx.entries) }
