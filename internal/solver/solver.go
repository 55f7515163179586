// Package solver implements the playlist solver (C7): a beam search
// over a track pool that matches an energy curve while optimizing
// harmonic flow, tempo smoothness, mood progression and diversity.
package solver

import (
	"math"
	"sort"
	"sync"

	"github.com/djcrate/engine/internal/index"
	"github.com/djcrate/engine/internal/model"
	"github.com/djcrate/engine/internal/suggest"
	"github.com/google/uuid"
)

// Constraints are the optional hard/soft filters spec §4.7 defines.
type Constraints struct {
	BPMRange      *[2]float64 // soft ×0.5 penalty if out of range
	EnergyRange   *[2]float64 // soft ×0.5
	RequiredMoods []model.MoodKind // soft ×0.3 unless one has probability > 0.5
	Blacklist     map[model.TrackId]bool // hard, score 0
}

// Config tunes the beam search; zero-value Config resolves to spec's
// stated defaults via WithDefaults.
type Config struct {
	BeamWidth        int
	PruningThreshold float64
	MaxCandidatesPerParent int // "up to 5 child states per parent"
	// EarlyStop toggles the score>=0.95/length>=0.8n early return. nil
	// means unset and resolves to true (spec's described default) via
	// WithDefaults; an explicit false disables early stopping.
	EarlyStop *bool
	StateWeights StateWeights
}

// StateWeights are the §4.7 state-score coefficients
// (curve_match/harmonic/flow/diversity). Overridable via config's
// solver.weights.
type StateWeights struct {
	CurveMatch float64
	Harmonic   float64
	Flow       float64
	Diversity  float64
}

// DefaultStateWeights returns spec §4.7's stated defaults.
func DefaultStateWeights() StateWeights {
	return StateWeights{CurveMatch: 0.4, Harmonic: 0.3, Flow: 0.2, Diversity: 0.1}
}

// WithDefaults fills unset fields with spec §4.7's defaults.
func (c Config) WithDefaults() Config {
	if c.BeamWidth <= 0 {
		c.BeamWidth = 5
	}
	if c.PruningThreshold <= 0 {
		c.PruningThreshold = 0.1
	}
	if c.MaxCandidatesPerParent <= 0 {
		c.MaxCandidatesPerParent = 5
	}
	if c.EarlyStop == nil {
		t := true
		c.EarlyStop = &t
	}
	if (c.StateWeights == StateWeights{}) {
		c.StateWeights = DefaultStateWeights()
	}
	return c
}

// Result is the solver's output: the best state seen across the whole
// run, not merely the final beam's winner.
type Result struct {
	RunID         string
	Playlist      model.Playlist
	Score         float64
	CurveMatch    float64
	Harmonic      float64
	Flow          float64
	Diversity     float64
	Iterations    int
	EarlyStopped  bool
}

// state is one beam slot: an in-progress playlist prefix.
type state struct {
	tracks []model.FeatureRecord
	used   map[model.TrackId]bool
	keys   map[model.CamelotCode]bool
}

func newState(first model.FeatureRecord) *state {
	s := &state{
		tracks: []model.FeatureRecord{first},
		used:   map[model.TrackId]bool{first.TrackID: true},
		keys:   map[model.CamelotCode]bool{first.Camelot: true},
	}
	return s
}

func (s *state) clone() *state {
	cp := &state{
		tracks: make([]model.FeatureRecord, len(s.tracks)),
		used:   make(map[model.TrackId]bool, len(s.used)),
		keys:   make(map[model.CamelotCode]bool, len(s.keys)),
	}
	copy(cp.tracks, s.tracks)
	for k, v := range s.used {
		cp.used[k] = v
	}
	for k, v := range s.keys {
		cp.keys[k] = v
	}
	return cp
}

func (s *state) append(rec model.FeatureRecord) *state {
	cp := s.clone()
	cp.tracks = append(cp.tracks, rec)
	cp.used[rec.TrackID] = true
	cp.keys[rec.Camelot] = true
	return cp
}

func (s *state) last() model.FeatureRecord { return s.tracks[len(s.tracks)-1] }

// Solver owns the similarity index, a candidate pool, and the
// transition-score memo table.
type Solver struct {
	idx    *index.Index
	pool   []model.FeatureRecord
	byID   map[model.TrackId]model.FeatureRecord
	cfg    Config

	memoMu sync.Mutex
	memo   map[memoKey]float64
}

const maxMemoEntries = 10000

type memoKey struct {
	from, to model.TrackId
	target   float64 // rounded to 1 decimal, per spec
}

func New(idx *index.Index, pool []model.FeatureRecord, cfg Config) *Solver {
	byID := make(map[model.TrackId]model.FeatureRecord, len(pool))
	for _, r := range pool {
		byID[r.TrackID] = r
	}
	return &Solver{idx: idx, pool: pool, byID: byID, cfg: cfg.WithDefaults(), memo: make(map[memoKey]float64)}
}

func (sv *Solver) transitionScore(from, to model.FeatureRecord, target float64) float64 {
	key := memoKey{from: from.TrackID, to: to.TrackID, target: math.Round(target*10) / 10}
	sv.memoMu.Lock()
	if v, ok := sv.memo[key]; ok {
		sv.memoMu.Unlock()
		return v
	}
	sv.memoMu.Unlock()

	v := suggest.TransitionScore(from, to, target)

	sv.memoMu.Lock()
	if len(sv.memo) < maxMemoEntries {
		sv.memo[key] = v
	}
	sv.memoMu.Unlock()
	return v
}

// Solve runs the beam search described in spec §4.7.
func (sv *Solver) Solve(curve model.Curve, targetLen int, constraints Constraints, seed []model.TrackId) Result {
	if targetLen < 1 {
		targetLen = 1
	}
	if len(sv.pool) == 0 {
		return Result{}
	}

	beam := sv.initialize(curve, targetLen, seed, constraints)
	if len(beam) == 0 {
		return Result{}
	}

	best := sv.bestOf(beam, curve, targetLen)
	bestResult := sv.evaluate(best, curve, targetLen)

	maxIterations := targetLen - 1
	iterations := 0
	earlyStopped := false

	for iterations < maxIterations {
		if allFull(beam, targetLen) {
			break
		}
		nextGen := sv.expandStep(beam, curve, targetLen, constraints)
		if len(nextGen) == 0 {
			break
		}
		beam = sv.selectTopW(nextGen)
		iterations++

		candidate := sv.bestOf(beam, curve, targetLen)
		candidateResult := sv.evaluate(candidate, curve, targetLen)
		if candidateResult.Score > bestResult.Score {
			best = candidate
			bestResult = candidateResult
		}

		if sv.cfg.EarlyStop != nil && *sv.cfg.EarlyStop &&
			bestResult.Score >= 0.95 && len(best.tracks) >= int(0.8*float64(targetLen)) {
			earlyStopped = true
			break
		}
	}

	bestResult.Iterations = iterations
	bestResult.EarlyStopped = earlyStopped
	bestResult.Playlist = sv.toPlaylist(best, curve, bestResult.Score)
	bestResult.RunID = uuid.NewString()
	return bestResult
}

func allFull(beam []*state, targetLen int) bool {
	for _, s := range beam {
		if len(s.tracks) < targetLen {
			return false
		}
	}
	return true
}

// initialize builds W starting states: either from seed tracks, or by
// picking the tracks whose energy best matches curve(0).
func (sv *Solver) initialize(curve model.Curve, targetLen int, seed []model.TrackId, constraints Constraints) []*state {
	w := sv.cfg.BeamWidth

	if len(seed) > 0 {
		var states []*state
		for _, id := range seed {
			if rec, ok := sv.byID[id]; ok {
				states = append(states, newState(rec))
			}
		}
		if len(states) > w {
			states = states[:w]
		}
		return states
	}

	target := curve.At(0)
	type candidate struct {
		rec   model.FeatureRecord
		delta float64
	}
	var candidates []candidate
	for _, rec := range sv.pool {
		if constraints.Blacklist != nil && constraints.Blacklist[rec.TrackID] {
			continue
		}
		candidates = append(candidates, candidate{rec: rec, delta: math.Abs(rec.EnergyScore - target)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].delta != candidates[j].delta {
			return candidates[i].delta < candidates[j].delta
		}
		return candidates[i].rec.TrackID < candidates[j].rec.TrackID
	})
	if len(candidates) > w {
		candidates = candidates[:w]
	}
	states := make([]*state, len(candidates))
	for i, c := range candidates {
		states[i] = newState(c.rec)
	}
	return states
}

// expandStep expands every parent state by up to MaxCandidatesPerParent
// children, then prunes. Per spec §5, merging/pruning happens at the
// step boundary, not within a state — each parent's expansion can run
// concurrently.
func (sv *Solver) expandStep(beam []*state, curve model.Curve, targetLen int, constraints Constraints) []*state {
	type expansion struct {
		parentIdx int
		children  []*state
	}
	results := make([]expansion, len(beam))

	var wg sync.WaitGroup
	for i, parent := range beam {
		if len(parent.tracks) >= targetLen {
			results[i] = expansion{parentIdx: i, children: []*state{parent}}
			continue
		}
		wg.Add(1)
		go func(i int, parent *state) {
			defer wg.Done()
			results[i] = expansion{parentIdx: i, children: sv.expandOne(parent, curve, targetLen, constraints)}
		}(i, parent)
	}
	wg.Wait()

	var combined []*state
	for _, r := range results {
		combined = append(combined, r.children...)
	}
	return sv.prune(combined, curve, targetLen)
}

// expandOne produces up to MaxCandidatesPerParent children of one
// parent state, per spec §4.7's per-state expansion steps 1-6.
func (sv *Solver) expandOne(parent *state, curve model.Curve, targetLen int, constraints Constraints) []*state {
	position := len(parent.tracks) // next index to fill
	var targetPos float64
	if targetLen > 1 {
		targetPos = float64(position) / float64(targetLen-1)
	}
	targetEnergy := curve.At(targetPos)

	last := parent.last()
	neighbors := sv.idx.NeighborsOfRecord(last, 0)

	type scoredCandidate struct {
		rec   model.FeatureRecord
		score float64
	}
	byID := map[model.TrackId]scoredCandidate{}

	count := 0
	for _, n := range neighbors {
		if parent.used[n.TrackID] {
			continue
		}
		rec, ok := sv.byID[n.TrackID]
		if !ok {
			continue
		}
		score := sv.candidateScore(parent, last, rec, targetEnergy, constraints)
		byID[n.TrackID] = scoredCandidate{rec: rec, score: score}
		count++
		if count >= 15 {
			break
		}
	}

	type energyCandidate struct {
		rec   model.FeatureRecord
		delta float64
	}
	var energyMatches []energyCandidate
	for _, rec := range sv.pool {
		if parent.used[rec.TrackID] {
			continue
		}
		delta := math.Abs(rec.EnergyScore - targetEnergy)
		if delta > 1.5 {
			continue
		}
		energyMatches = append(energyMatches, energyCandidate{rec: rec, delta: delta})
	}
	sort.Slice(energyMatches, func(i, j int) bool {
		if energyMatches[i].delta != energyMatches[j].delta {
			return energyMatches[i].delta < energyMatches[j].delta
		}
		return energyMatches[i].rec.TrackID < energyMatches[j].rec.TrackID
	})
	if len(energyMatches) > 10 {
		energyMatches = energyMatches[:10]
	}
	for _, c := range energyMatches {
		score := sv.candidateScore(parent, last, c.rec, targetEnergy, constraints)
		if existing, ok := byID[c.rec.TrackID]; !ok || score > existing.score {
			byID[c.rec.TrackID] = scoredCandidate{rec: c.rec, score: score}
		}
	}

	ranked := make([]scoredCandidate, 0, len(byID))
	for _, c := range byID {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].rec.TrackID < ranked[j].rec.TrackID
	})
	if len(ranked) > sv.cfg.MaxCandidatesPerParent {
		ranked = ranked[:sv.cfg.MaxCandidatesPerParent]
	}

	children := make([]*state, len(ranked))
	for i, c := range ranked {
		children[i] = parent.append(c.rec)
	}
	return children
}

// candidateScore is step 5 of spec §4.7's per-candidate expansion:
// transition score × constraint multiplier, plus the diversity bonus.
func (sv *Solver) candidateScore(parent *state, last, cand model.FeatureRecord, targetEnergy float64, constraints Constraints) float64 {
	if constraints.Blacklist != nil && constraints.Blacklist[cand.TrackID] {
		return 0
	}

	base := sv.transitionScore(last, cand, targetEnergy)
	base *= constraintMultiplier(cand, constraints)

	prefixEnergies := make([]float64, 0, len(parent.tracks)+1)
	for _, t := range parent.tracks {
		prefixEnergies = append(prefixEnergies, t.EnergyScore)
	}
	beforeVar := variance(prefixEnergies)
	afterVar := variance(append(prefixEnergies, cand.EnergyScore))
	energyVarianceDelta := afterVar - beforeVar

	diversityBonus := 0.5 * energyVarianceDelta
	if !parent.keys[cand.Camelot] {
		diversityBonus += 0.3
	}

	return base + diversityBonus
}

func constraintMultiplier(cand model.FeatureRecord, constraints Constraints) float64 {
	mult := 1.0
	if constraints.BPMRange != nil {
		lo, hi := constraints.BPMRange[0], constraints.BPMRange[1]
		if cand.BPM < lo || cand.BPM > hi {
			mult *= 0.5
		}
	}
	if constraints.EnergyRange != nil {
		lo, hi := constraints.EnergyRange[0], constraints.EnergyRange[1]
		if cand.EnergyScore < lo || cand.EnergyScore > hi {
			mult *= 0.5
		}
	}
	if len(constraints.RequiredMoods) > 0 {
		satisfied := false
		for _, m := range constraints.RequiredMoods {
			if cand.Mood[m] > 0.5 {
				satisfied = true
				break
			}
		}
		if !satisfied {
			mult *= 0.3
		}
	}
	return mult
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// prune drops states scoring below pruning_threshold * best_score_in_step.
func (sv *Solver) prune(states []*state, curve model.Curve, targetLen int) []*state {
	if len(states) == 0 {
		return states
	}
	scores := make([]float64, len(states))
	best := math.Inf(-1)
	for i, s := range states {
		scores[i] = sv.evaluate(s, curve, targetLen).Score
		if scores[i] > best {
			best = scores[i]
		}
	}
	threshold := sv.cfg.PruningThreshold * best
	var kept []*state
	for i, s := range states {
		if scores[i] >= threshold {
			kept = append(kept, s)
		}
	}
	return kept
}

// selectTopW keeps the top-W states after pruning, sorted by a total
// order (score, then deterministic TrackId-sequence comparison) so
// ties never depend on goroutine arrival order (spec §5).
func (sv *Solver) selectTopW(states []*state) []*state {
	type scored struct {
		s     *state
		score float64
	}
	ranked := make([]scored, len(states))
	for i, s := range states {
		ranked[i] = scored{s: s, score: sv.evaluate(s, model.Curve{}, 0).Score}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return lessTracks(ranked[i].s.tracks, ranked[j].s.tracks)
	})
	w := sv.cfg.BeamWidth
	if len(ranked) > w {
		ranked = ranked[:w]
	}
	out := make([]*state, len(ranked))
	for i, r := range ranked {
		out[i] = r.s
	}
	return out
}

func lessTracks(a, b []model.FeatureRecord) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].TrackID != b[i].TrackID {
			return a[i].TrackID < b[i].TrackID
		}
	}
	return len(a) < len(b)
}

func (sv *Solver) bestOf(beam []*state, curve model.Curve, targetLen int) *state {
	var best *state
	bestScore := math.Inf(-1)
	for _, s := range beam {
		r := sv.evaluate(s, curve, targetLen)
		if r.Score > bestScore {
			bestScore = r.Score
			best = s
		}
	}
	return best
}

// evaluate computes the full state score per spec §4.7's formula. When
// targetLen <= 1 (used by selectTopW's lightweight reordering), target
// energies default to each track's own energy, which makes curve_match
// trivially 1 and leaves the ranking driven by harmonic/flow/diversity
// — selectTopW only needs a stable total order, not curve fidelity.
func (sv *Solver) evaluate(s *state, curve model.Curve, targetLen int) Result {
	if s == nil || len(s.tracks) == 0 {
		return Result{}
	}

	var energyDeltaSum float64
	for i, t := range s.tracks {
		var target float64
		if targetLen > 1 {
			target = curve.At(float64(i) / float64(targetLen-1))
		} else {
			target = t.EnergyScore
		}
		energyDeltaSum += math.Abs(t.EnergyScore - target)
	}
	curveMatch := 1 - (energyDeltaSum/float64(len(s.tracks)))/5
	curveMatch = clamp01(curveMatch)

	var harmonicSum float64
	var flowSum float64
	pairs := 0
	for i := 0; i+1 < len(s.tracks); i++ {
		harmonicSum += suggest.CamelotComponent(s.tracks[i].Camelot, s.tracks[i+1].Camelot)
		delta := s.tracks[i+1].EnergyScore - s.tracks[i].EnergyScore
		flowSum += math.Max(0, 1-math.Abs(delta)/4)
		pairs++
	}
	harmonic := 1.0
	flow := 1.0
	if pairs > 0 {
		harmonic = harmonicSum / float64(pairs)
		flow = flowSum / float64(pairs)
	}

	energies := make([]float64, len(s.tracks))
	for i, t := range s.tracks {
		energies[i] = t.EnergyScore
	}
	energyVar := variance(energies)
	uniqueKeys := len(s.keys)
	denom := len(s.tracks)
	if denom > 12 {
		denom = 12
	}
	diversity := 0.0
	if denom > 0 {
		diversity = (clamp01(energyVar/4) + clamp01(float64(uniqueKeys)/float64(denom))) / 2
	}
	diversity = clamp01(diversity)

	w := sv.cfg.StateWeights
	score := w.CurveMatch*curveMatch + w.Harmonic*harmonic + w.Flow*flow + w.Diversity*diversity

	return Result{
		Score:      score,
		CurveMatch: curveMatch,
		Harmonic:   harmonic,
		Flow:       flow,
		Diversity:  diversity,
	}
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

func (sv *Solver) toPlaylist(s *state, curve model.Curve, score float64) model.Playlist {
	if s == nil {
		return model.Playlist{}
	}
	ids := make([]model.TrackId, len(s.tracks))
	for i, t := range s.tracks {
		ids[i] = t.TrackID
	}
	c := curve
	return model.Playlist{
		Tracks:       ids,
		CurveUsed:    &c,
		QualityScore: score * 100,
	}
}
