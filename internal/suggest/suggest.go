// Package suggest implements the suggestion engine (C6): transition
// scoring between tracks, and the "similar" and "surprise" query
// variants built on top of the similarity index (C5).
package suggest

import (
	"container/list"
	"math"
	"sort"
	"sync"

	"github.com/djcrate/engine/internal/camelot"
	"github.com/djcrate/engine/internal/index"
	"github.com/djcrate/engine/internal/model"
)

// moodAxes are the four mood labels the transition score's mood
// component averages over, per spec §4.6.
var moodAxes = [...]model.MoodKind{model.MoodDark, model.MoodEuphoric, model.MoodDriving, model.MoodExperimental}

// TransitionScore computes s(a, b, targetEnergy) exactly as spec §4.6
// defines it: a weighted blend of Camelot compatibility, BPM closeness,
// energy closeness, target-energy fit, and mood similarity.
func TransitionScore(a, b model.FeatureRecord, targetEnergy float64) float64 {
	camelotScore := CamelotComponent(a.Camelot, b.Camelot)
	bpmScore := math.Max(0, 1-math.Abs(a.BPM-b.BPM)/20)
	energyScore := math.Max(0, 1-math.Abs(a.EnergyScore-b.EnergyScore)/3)
	targetScore := math.Max(0, 1-math.Abs(b.EnergyScore-targetEnergy)/2)

	var moodSum float64
	for _, axis := range moodAxes {
		moodSum += 1 - math.Abs(a.Mood[axis]-b.Mood[axis])
	}
	moodScore := moodSum / float64(len(moodAxes))

	return 0.30*camelotScore + 0.20*bpmScore + 0.20*energyScore + 0.20*targetScore + 0.10*moodScore
}

// CamelotComponent implements spec's explicit compatibility ladder —
// deliberately not camelot.Distance-based, since the scoring buckets
// (same / relative / adjacent / dominant / other) don't collapse to a
// single linear function of wheel distance. Exported for reuse by the
// solver's harmonic-flow metric (§4.7) and the validator's
// harmonic_flow check (§4.8), both of which call this the same
// "transition_camelot" quantity.
func CamelotComponent(a, b model.CamelotCode) float64 {
	if a == b {
		return 1.0
	}
	if b == camelot.Relative(a) {
		return 0.95
	}
	for _, adj := range camelot.Adjacent(a) {
		if b == adj {
			return 0.85
		}
	}
	// spec's "±7 dominant" bucket is symmetric: +7 is Dominant, and
	// -7 mod 12 == +5 is Subdominant, so both land in the same bucket.
	if b == camelot.Dominant(a) || b == camelot.Subdominant(a) {
		return 0.8
	}
	return 0.3
}

// Suggestion is one ranked candidate returned by Similar or Surprise.
type Suggestion struct {
	TrackID model.TrackId
	Score   float64
	Reason  string
}

// Lookup resolves a TrackId to its FeatureRecord; callers typically pass
// a closure over the analysis cache or an in-memory map.
type Lookup func(model.TrackId) (model.FeatureRecord, bool)

// Engine wires the similarity index and a bounded query cache together.
// Construct one per loaded index snapshot; rebuild a new Engine whenever
// the index is rebuilt (index snapshots are immutable, so this type is
// too).
type Engine struct {
	idx    *index.Index
	lookup Lookup
	cache  *lruCache
}

func New(idx *index.Index, lookup Lookup) *Engine {
	return &Engine{idx: idx, lookup: lookup, cache: newLRU(1000)}
}

// Similar implements spec §4.6's `similar` query: fetch 3k nearest
// neighbors of base from the index, rescore by transition score at
// target_energy = base.energy, filter by min_compat, and return the
// top-k ranked by compat*(1-normalized_distance).
func (e *Engine) Similar(base model.FeatureRecord, k int, exclude map[model.TrackId]bool, minCompat float64) []Suggestion {
	cacheKey := lruKey{base: base.TrackID, k: k, minCompat: minCompat}
	if cached, ok := e.cache.get(cacheKey); ok {
		return cached
	}

	fetch := 3 * k
	neighbors := e.idx.NeighborsOfRecord(base, fetch)

	maxDist := 0.0
	for _, n := range neighbors {
		if n.Distance > maxDist {
			maxDist = n.Distance
		}
	}

	type scored struct {
		Suggestion
		rank float64
	}
	var candidates []scored
	for _, n := range neighbors {
		if exclude != nil && exclude[n.TrackID] {
			continue
		}
		if n.TrackID == base.TrackID {
			continue
		}
		rec, ok := e.lookup(n.TrackID)
		if !ok {
			continue
		}
		compat := TransitionScore(base, rec, base.EnergyScore)
		if compat < minCompat {
			continue
		}
		normDist := 0.0
		if maxDist > 0 {
			normDist = n.Distance / maxDist
		}
		candidates = append(candidates, scored{
			Suggestion: Suggestion{TrackID: n.TrackID, Score: compat},
			rank:       compat * (1 - normDist),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank > candidates[j].rank
		}
		return candidates[i].TrackID < candidates[j].TrackID
	})
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Suggestion, len(candidates))
	for i, c := range candidates {
		out[i] = c.Suggestion
	}

	e.cache.put(cacheKey, out)
	return out
}

const surpriseReason = "±2 Camelot + Energy Uplift (e2 > e1)"

// Surprise implements spec §4.6's `surprise` query: candidates whose
// Camelot is at wheel-distance exactly 2 from base along the same
// letter, and whose energy exceeds base.energy + 0.5, ranked by energy
// delta descending.
func Surprise(base model.FeatureRecord, pool []model.FeatureRecord, k int) []Suggestion {
	var candidates []Suggestion
	for _, cand := range pool {
		if cand.TrackID == base.TrackID {
			continue
		}
		if cand.Camelot.Letter != base.Camelot.Letter {
			continue
		}
		if camelot.Distance(base.Camelot, cand.Camelot) != 2 {
			continue
		}
		if cand.EnergyScore <= base.EnergyScore+0.5 {
			continue
		}
		candidates = append(candidates, Suggestion{
			TrackID: cand.TrackID,
			Score:   cand.EnergyScore - base.EnergyScore,
			Reason:  surpriseReason,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].TrackID < candidates[j].TrackID
	})
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// lruKey identifies one cached Similar query.
type lruKey struct {
	base      model.TrackId
	k         int
	minCompat float64
}

// lruCache is a small bounded LRU keyed by (base, k, min_compat), per
// spec §4.6's "bounded LRU cache ... of size 1000". Built on
// container/list rather than a third-party LRU package: nothing in the
// retrieval pack depends on one, and this is exactly the textbook
// doubly-linked-list-plus-map shape the stdlib container/list exists for.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[lruKey]*list.Element
}

type lruItem struct {
	key   lruKey
	value []Suggestion
}

func newLRU(capacity int) *lruCache {
	return &lruCache{capacity: capacity, ll: list.New(), items: make(map[lruKey]*list.Element)}
}

func (c *lruCache) get(key lruKey) ([]Suggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruItem).value, true
}

func (c *lruCache) put(key lruKey, value []Suggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem).value = value
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruItem{key: key, value: value})
	c.items[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruItem).key)
		}
	}
}
