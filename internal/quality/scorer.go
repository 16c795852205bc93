// Package quality scores a context envelope before it crosses a worker
// boundary. The envelope carries artifact manifests, never raw artifact
// bytes; an inline content blob in a delegation zeroes the utilization
// axis outright.
package quality

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"cloneforge/internal/artifact"
)

// Gate is the disposition a score resolves to.
type Gate string

const (
	GateReject  Gate = "reject"
	GateWarn    Gate = "warn"
	GateProceed Gate = "proceed"
)

const (
	weightClarity     = 0.4
	weightRelevance   = 0.3
	weightUtilization = 0.3

	rejectBelow = 40
	warnBelow   = 60
)

// PackageInput is the raw material for ConstructContextPackage.
// InlineContent is set by the caller when any manifest entry in the
// original request carried a raw content field; the typed manifest slice
// cannot represent that, so the finding travels alongside it.
type PackageInput struct {
	Objective         string
	TargetClone       string
	EssentialData     map[string]any
	Constraints       map[string]any
	ArtifactManifests []artifact.Manifest
	InlineContent     bool
}

// Envelope is the quality-scored, manifest-only context package handed
// across a worker boundary.
type Envelope struct {
	ContextID         string              `json:"contextId"`
	Objective         string              `json:"objective"`
	TargetClone       string              `json:"targetClone"`
	EssentialData     map[string]any      `json:"essentialData"`
	Constraints       map[string]any      `json:"constraints,omitempty"`
	ArtifactManifests []artifact.Manifest `json:"artifactManifests,omitempty"`
	Timestamp         time.Time           `json:"timestamp"`
	Quality           Score               `json:"quality"`
}

// Score is the three-axis breakdown plus the overall weighted result.
type Score struct {
	ObjectiveClarity    int  `json:"objectiveClarity"`
	DataRelevance       int  `json:"dataRelevance"`
	ArtifactUtilization int  `json:"artifactUtilization"`
	Overall             int  `json:"overall"`
	Gate                Gate `json:"gate"`
}

// QualityGateError is raised when an envelope's overall score falls below
// the reject threshold; no delegation may occur when this is returned.
type QualityGateError struct {
	Score Score
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("quality: envelope rejected, overall score %d below threshold %d", e.Score.Overall, rejectBelow)
}

var ErrInvalidInput = errors.New("quality: invalid input")

var actionVerbPattern = regexp.MustCompile(`(?i)^(add|analyze|build|create|design|document|evaluate|fix|generate|implement|improve|migrate|optimize|refactor|remove|repair|replace|review|test|update|validate|write)$`)

// ConstructContextPackage builds the envelope and computes its quality
// score. A reject disposition returns a *QualityGateError alongside the
// (still populated, for logging) envelope.
func ConstructContextPackage(input PackageInput) (Envelope, error) {
	if strings.TrimSpace(input.Objective) == "" {
		return Envelope{}, fmt.Errorf("%w: objective is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.TargetClone) == "" {
		return Envelope{}, fmt.Errorf("%w: targetClone is required", ErrInvalidInput)
	}

	score := Score{
		ObjectiveClarity:    scoreObjectiveClarity(input.Objective),
		DataRelevance:       scoreDataRelevance(input.EssentialData),
		ArtifactUtilization: scoreArtifactUtilization(input.ArtifactManifests, input.InlineContent),
	}
	overall := weightClarity*float64(score.ObjectiveClarity) +
		weightRelevance*float64(score.DataRelevance) +
		weightUtilization*float64(score.ArtifactUtilization)
	score.Overall = int(math.Round(overall))

	switch {
	case score.Overall < rejectBelow:
		score.Gate = GateReject
	case score.Overall < warnBelow:
		score.Gate = GateWarn
	default:
		score.Gate = GateProceed
	}

	envelope := Envelope{
		ContextID:         uuid.NewString(),
		Objective:         input.Objective,
		TargetClone:       input.TargetClone,
		EssentialData:     input.EssentialData,
		Constraints:       input.Constraints,
		ArtifactManifests: input.ArtifactManifests,
		Timestamp:         time.Now().UTC(),
		Quality:           score,
	}

	if score.Gate == GateReject {
		return envelope, &QualityGateError{Score: score}
	}
	return envelope, nil
}

// scoreObjectiveClarity rewards a 5-20 word objective containing at least
// one action verb and one target noun (approximated here as any
// non-verb content word), degrading linearly outside that band.
func scoreObjectiveClarity(objective string) int {
	words := strings.Fields(objective)
	n := len(words)
	if n == 0 {
		return 0
	}

	hasVerb := false
	hasNoun := false
	for _, w := range words {
		clean := strings.Trim(strings.ToLower(w), ".,;:!?")
		if clean == "" {
			continue
		}
		if actionVerbPattern.MatchString(clean) {
			hasVerb = true
		} else {
			hasNoun = true
		}
	}

	base := 100
	switch {
	case n < 5:
		base = int(math.Round(100 * float64(n) / 5))
	case n > 20:
		over := n - 20
		base = int(math.Max(0, 100-float64(over)*5))
	}

	if !hasVerb {
		base -= 40
	}
	if !hasNoun {
		base -= 40
	}
	if base < 0 {
		base = 0
	}
	if base > 100 {
		base = 100
	}
	return base
}

// scoreDataRelevance penalizes null/empty values in essentialData; an
// empty map scores low but not zero.
func scoreDataRelevance(data map[string]any) int {
	if len(data) == 0 {
		return 20
	}
	const penaltyPerEmpty = 15
	score := 100
	for _, v := range data {
		if isEmptyValue(v) {
			score -= penaltyPerEmpty
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

// scoreArtifactUtilization is 100 when every manifest entry carries no
// inline content and at least one manifest is present; 0 if any entry
// smuggles raw bytes in, since that defeats the lightweight-manifest rule.
func scoreArtifactUtilization(manifests []artifact.Manifest, inlineContent bool) int {
	if inlineContent {
		return 0
	}
	if len(manifests) == 0 {
		return 50
	}
	for _, m := range manifests {
		if m.ArtifactID == "" || m.Checksum == "" {
			return 0
		}
	}
	return 100
}
