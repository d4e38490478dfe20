// Package selection scores available workers against a subtask's
// required capabilities and picks the best match.
package selection

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/openfleet/orchestrator/internal/metrics"
	"github.com/openfleet/orchestrator/internal/session"
	"github.com/openfleet/orchestrator/internal/workers"
)

// neutralScore is used when a subtask specifies no required capabilities:
// every candidate is equally plausible, but none is a certain match.
const neutralScore = 0.5

// Selection is the outcome of scoring one subtask against the directory
type Selection struct {
	WorkerID            string
	Confidence          float64
	MatchedCapabilities []workers.CapabilityID
}

// Selector picks the best-matching worker for a subtask
type Selector struct {
	directory workers.Directory
	logger    *zap.Logger
}

// NewSelector creates a selector backed by the given directory
func NewSelector(directory workers.Directory, logger *zap.Logger) *Selector {
	return &Selector{directory: directory, logger: logger}
}

// Select returns the best worker for the subtask, or nil when no worker
// scores above zero. The orchestrator worker is never chosen while other
// candidates exist; when it is the only worker registered it is returned
// directly as an explicit degraded-mode fallback.
func (s *Selector) Select(ctx context.Context, subtask *session.Subtask, orchestratorWorkerID string) (*Selection, error) {
	defs, err := s.directory.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		metrics.SelectionMisses.Inc()
		return nil, nil
	}

	candidates := make([]workers.Definition, 0, len(defs))
	for _, def := range defs {
		if def.ID != orchestratorWorkerID {
			candidates = append(candidates, def)
		}
	}
	if len(candidates) == 0 {
		// The orchestrator is the only worker there is. Assigning it its
		// own subtasks beats not running them at all.
		s.logger.Warn("Only the orchestrator worker is available, assigning it directly",
			zap.String("subtask_id", subtask.ID),
			zap.String("worker_id", orchestratorWorkerID),
		)
		return &Selection{WorkerID: orchestratorWorkerID, Confidence: 1.0}, nil
	}

	type scored struct {
		def     workers.Definition
		score   float64
		matched []workers.CapabilityID
	}
	ranked := make([]scored, 0, len(candidates))
	for _, def := range candidates {
		score, matched := scoreWorker(def, subtask.RequiredCapabilities)
		ranked = append(ranked, scored{def: def, score: score, matched: matched})
	}

	// Stable sort: directory order breaks ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	top := ranked[0]
	if top.score <= 0 {
		s.logger.Debug("No worker matched subtask capabilities",
			zap.String("subtask_id", subtask.ID),
		)
		metrics.SelectionMisses.Inc()
		return nil, nil
	}

	s.logger.Debug("Selected worker for subtask",
		zap.String("subtask_id", subtask.ID),
		zap.String("worker_id", top.def.ID),
		zap.Float64("confidence", top.score),
	)
	return &Selection{
		WorkerID:            top.def.ID,
		Confidence:          top.score,
		MatchedCapabilities: top.matched,
	}, nil
}

// scoreWorker computes matchedCount/requiredCount for the subtask's
// capabilities. A required capability matches on exact capability ID or,
// as a secondary strategy, on case-insensitive name equality.
func scoreWorker(def workers.Definition, required []workers.CapabilityID) (float64, []workers.CapabilityID) {
	if len(required) == 0 {
		return neutralScore, nil
	}
	var matched []workers.CapabilityID
	for _, want := range required {
		for _, have := range def.Capabilities {
			if have.ID == want || strings.EqualFold(have.Name, string(want)) {
				matched = append(matched, want)
				break
			}
		}
	}
	return float64(len(matched)) / float64(len(required)), matched
}
