// Package validator implements the playlist validator (C8): a set of
// independent quality checks over a finished playlist, aggregated into
// a single 0-100 quality score, plus idempotent auto-fix application.
package validator

import (
	"fmt"
	"os"

	"github.com/djcrate/engine/internal/camelot"
	"github.com/djcrate/engine/internal/model"
)

// TrackMeta bundles a FeatureRecord with the metadata the validator
// needs but the extraction pipeline doesn't produce: tag-derived
// artist/genre/bitrate, the resolved file path, and the pitch-shift
// capability flag technical_mixing's auto-fix can set.
type TrackMeta struct {
	Record        model.FeatureRecord
	FilePath      string
	BitrateKbps   int // 0 means unknown; audio_quality only checks known bitrates
	Artist        string
	Genre         string
	CanPitchShift bool
	// EffectiveBPM is an annotation-only override set by ApplyAutoFixes'
	// tempo_flow fix; it never rewrites Record.BPM itself. Nil means
	// "use Record.BPM".
	EffectiveBPM *float64
}

// Weights are the per-category multipliers §4.8 aggregates with.
// Only the seven categories assigned a weight count toward
// the overall score; file_existence and audio_quality issues are still
// collected but do not move the score, matching the worked example.
type Weights struct {
	Harmonic, Energy, Tempo, Mood, Diversity, Technical, Crowd float64
}

// DefaultWeights returns spec §4.8's stated defaults.
func DefaultWeights() Weights {
	return Weights{
		Harmonic:  0.25,
		Energy:    0.20,
		Tempo:     0.15,
		Mood:      0.15,
		Diversity: 0.10,
		Technical: 0.10,
		Crowd:     0.05,
	}
}

const (
	categoryFileExistence  = "file_existence"
	categoryAudioQuality   = "audio_quality"
	categoryHarmonicFlow   = "harmonic_flow"
	categoryEnergyFlow     = "energy_flow"
	categoryTempoFlow      = "tempo_flow"
	categoryMoodProgress   = "mood_progression"
	categoryDiversity      = "diversity"
	categoryTechnical      = "technical_mixing"
	categoryCrowd          = "crowd_engagement"
)

// Validate runs every category check over tracks and returns the
// aggregated quality score (0-100) plus the full issue list.
func Validate(tracks []TrackMeta, weights Weights) (float64, []model.Issue) {
	var issues []model.Issue
	issues = append(issues, checkFileExistence(tracks)...)
	issues = append(issues, checkAudioQuality(tracks)...)
	issues = append(issues, checkHarmonicFlow(tracks)...)
	issues = append(issues, checkEnergyFlow(tracks)...)
	issues = append(issues, checkTempoFlow(tracks)...)
	issues = append(issues, checkMoodProgression(tracks)...)
	issues = append(issues, checkDiversity(tracks)...)
	issues = append(issues, checkTechnicalMixing(tracks)...)
	issues = append(issues, checkCrowdEngagement(tracks)...)

	return aggregate(issues, weights), issues
}

func checkFileExistence(tracks []TrackMeta) []model.Issue {
	var out []model.Issue
	for i, t := range tracks {
		if t.FilePath == "" {
			continue
		}
		if _, err := os.Stat(t.FilePath); err != nil {
			out = append(out, model.Issue{
				Kind:       model.IssueError,
				Category:   categoryFileExistence,
				Message:    fmt.Sprintf("track file not found: %s", t.FilePath),
				TrackIndex: i,
				Severity:   1.0,
			})
		}
	}
	return out
}

func checkAudioQuality(tracks []TrackMeta) []model.Issue {
	var out []model.Issue
	for i, t := range tracks {
		if t.BitrateKbps <= 0 {
			continue // unknown bitrate, not checked
		}
		if t.BitrateKbps < 128 {
			out = append(out, model.Issue{
				Kind:       model.IssueWarning,
				Category:   categoryAudioQuality,
				Message:    fmt.Sprintf("low bitrate (%d kbps) for track %d", t.BitrateKbps, i),
				TrackIndex: i,
				Severity:   0.8,
			})
		}
	}
	return out
}

func checkHarmonicFlow(tracks []TrackMeta) []model.Issue {
	var out []model.Issue
	for i := 0; i+1 < len(tracks); i++ {
		a, b := tracks[i].Record.Camelot, tracks[i+1].Record.Camelot
		if !a.Valid() || !b.Valid() {
			continue
		}
		if !camelot.Compatible(a, b, camelot.LevelExtended) {
			out = append(out, model.Issue{
				Kind:       model.IssueWarning,
				Category:   categoryHarmonicFlow,
				Message:    fmt.Sprintf("incompatible key transition %s -> %s", a, b),
				TrackIndex: i + 1,
				Severity:   0.7,
			})
		}
	}
	return out
}

func checkEnergyFlow(tracks []TrackMeta) []model.Issue {
	var out []model.Issue
	for i := 0; i+1 < len(tracks); i++ {
		delta := tracks[i+1].Record.EnergyScore - tracks[i].Record.EnergyScore
		if abs(delta) > 3 {
			out = append(out, model.Issue{
				Kind:       model.IssueWarning,
				Category:   categoryEnergyFlow,
				Message:    fmt.Sprintf("large energy jump between track %d and %d", i+1, i+2),
				TrackIndex: i + 1,
				Severity:   0.6,
			})
		}
	}
	return out
}

func checkTempoFlow(tracks []TrackMeta) []model.Issue {
	var out []model.Issue
	for i := 0; i+1 < len(tracks); i++ {
		delta := effectiveBPM(tracks[i+1]) - effectiveBPM(tracks[i])
		if abs(delta) > 20 {
			out = append(out, model.Issue{
				Kind:        model.IssueWarning,
				Category:    categoryTempoFlow,
				Message:     fmt.Sprintf("large BPM jump between track %d and %d", i+1, i+2),
				TrackIndex:  i + 1,
				Severity:    0.5,
				AutoFixable: true,
			})
		}
	}
	return out
}

func checkMoodProgression(tracks []TrackMeta) []model.Issue {
	if len(tracks) < 3 {
		return nil
	}
	changes := 0
	for i := 0; i+1 < len(tracks); i++ {
		if tracks[i].Record.MoodLabel != tracks[i+1].Record.MoodLabel {
			changes++
		}
	}
	if float64(changes) < float64(len(tracks))/3 {
		return []model.Issue{{
			Kind:       model.IssueInfo,
			Category:   categoryMoodProgress,
			Message:    "few mood changes across the playlist",
			TrackIndex: -1,
			Severity:   0.3,
		}}
	}
	return nil
}

func checkDiversity(tracks []TrackMeta) []model.Issue {
	var out []model.Issue
	out = append(out, consecutiveRunIssues(tracks, 2, func(t TrackMeta) string { return t.Artist },
		func(value string, start int) model.Issue {
			return model.Issue{
				Kind:       model.IssueWarning,
				Category:   categoryDiversity,
				Message:    fmt.Sprintf("artist %q appears more than 2 times consecutively", value),
				TrackIndex: start,
				Severity:   0.4,
			}
		})...)
	out = append(out, consecutiveRunIssues(tracks, 3, func(t TrackMeta) string { return t.Genre },
		func(value string, start int) model.Issue {
			return model.Issue{
				Kind:       model.IssueWarning,
				Category:   categoryDiversity,
				Message:    fmt.Sprintf("genre %q appears more than 3 times consecutively", value),
				TrackIndex: start,
				Severity:   0.4,
			}
		})...)
	return out
}

// consecutiveRunIssues scans for runs of identical, non-empty key(t)
// values longer than maxRun, emitting one issue per run that exceeds it.
func consecutiveRunIssues(tracks []TrackMeta, maxRun int, key func(TrackMeta) string, issue func(value string, start int) model.Issue) []model.Issue {
	var out []model.Issue
	i := 0
	for i < len(tracks) {
		value := key(tracks[i])
		if value == "" {
			i++
			continue
		}
		j := i + 1
		for j < len(tracks) && key(tracks[j]) == value {
			j++
		}
		runLen := j - i
		if runLen > maxRun {
			out = append(out, issue(value, i))
		}
		i = j
	}
	return out
}

func checkTechnicalMixing(tracks []TrackMeta) []model.Issue {
	var out []model.Issue
	for i := 0; i+1 < len(tracks); i++ {
		delta := abs(effectiveBPM(tracks[i+1]) - effectiveBPM(tracks[i]))
		if delta > 5 && !tracks[i].CanPitchShift {
			out = append(out, model.Issue{
				Kind:        model.IssueWarning,
				Category:    categoryTechnical,
				Message:     fmt.Sprintf("beat-matching difficult between track %d and %d", i+1, i+2),
				TrackIndex:  i + 1,
				Severity:    0.6,
				AutoFixable: true,
			})
		}
	}
	return out
}

func checkCrowdEngagement(tracks []TrackMeta) []model.Issue {
	if len(tracks) == 0 {
		return nil
	}
	peaks := 0
	for _, t := range tracks {
		if t.Record.EnergyScore > 8 {
			peaks++
		}
	}
	if float64(peaks) < float64(len(tracks))/5 {
		return []model.Issue{{
			Kind:       model.IssueSuggestion,
			Category:   categoryCrowd,
			Message:    "few energy peaks, crowd engagement may suffer",
			TrackIndex: -1,
			Severity:   0.2,
		}}
	}
	return nil
}

// aggregate implements spec §4.8's weighted rollup: per category,
// score = 1 - mean(severity), 0 if no issues in that category; overall
// is the weighted sum over the seven scored categories, rescaled to a
// percent.
func aggregate(issues []model.Issue, weights Weights) float64 {
	categoryWeight := map[string]float64{
		categoryHarmonicFlow: weights.Harmonic,
		categoryEnergyFlow:   weights.Energy,
		categoryTempoFlow:    weights.Tempo,
		categoryMoodProgress: weights.Mood,
		categoryDiversity:    weights.Diversity,
		categoryTechnical:    weights.Technical,
		categoryCrowd:        weights.Crowd,
	}

	severitySum := map[string]float64{}
	severityCount := map[string]int{}
	for _, issue := range issues {
		if _, scored := categoryWeight[issue.Category]; !scored {
			continue
		}
		severitySum[issue.Category] += issue.Severity
		severityCount[issue.Category]++
	}

	var totalWeight, weighted float64
	for category, weight := range categoryWeight {
		totalWeight += weight
		score := 1.0
		if n := severityCount[category]; n > 0 {
			score = 1.0 - severitySum[category]/float64(n)
		}
		weighted += score * weight
	}
	if totalWeight == 0 {
		return 100
	}
	return (weighted / totalWeight) * 100
}

// effectiveBPM prefers an ApplyAutoFixes annotation over the measured
// BPM, matching tempo_flow's "annotation only; does not rewrite audio".
func effectiveBPM(t TrackMeta) float64 {
	if t.EffectiveBPM != nil {
		return *t.EffectiveBPM
	}
	return t.Record.BPM
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ApplyAutoFixes applies every auto_fixable issue's fix (tempo_flow:
// set the later track's effective BPM to the mean of the pair;
// technical_mixing: set CanPitchShift), then re-validates. Per spec,
// auto-fix must be idempotent and must never worsen the overall score;
// if the fixed playlist would score lower, the original is returned
// unchanged.
func ApplyAutoFixes(tracks []TrackMeta, issues []model.Issue, weights Weights) ([]TrackMeta, float64, []model.Issue) {
	baselineScore, _ := Validate(tracks, weights)

	fixed := make([]TrackMeta, len(tracks))
	copy(fixed, tracks)

	for _, issue := range issues {
		if !issue.AutoFixable {
			continue
		}
		switch issue.Category {
		case categoryTempoFlow:
			i := issue.TrackIndex
			if i-1 >= 0 && i < len(fixed) {
				mean := (effectiveBPM(fixed[i-1]) + effectiveBPM(fixed[i])) / 2
				fixed[i].EffectiveBPM = &mean
			}
		case categoryTechnical:
			i := issue.TrackIndex
			if i-1 >= 0 && i-1 < len(fixed) {
				fixed[i-1].CanPitchShift = true
			}
		}
	}

	fixedScore, fixedIssues := Validate(fixed, weights)
	if fixedScore < baselineScore {
		return tracks, baselineScore, issues
	}
	return fixed, fixedScore, fixedIssues
}
