// Package analysis classifies a request's complexity and decomposes
// non-trivial requests into a subtask graph. Worker responses are
// untrusted free text; every parse step has an explicit fallback so the
// orchestration can always proceed with something.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openfleet/orchestrator/internal/metrics"
	"github.com/openfleet/orchestrator/internal/prompts"
	"github.com/openfleet/orchestrator/internal/session"
	"github.com/openfleet/orchestrator/internal/workers"
)

// Complexity grades how much decomposition a request warrants
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// TaskAnalysis is the ephemeral classification of one request. It is not
// persisted beyond decomposition.
type TaskAnalysis struct {
	TaskType             string     `json:"taskType"`
	RequiredCapabilities []string   `json:"requiredCapabilities"`
	Complexity           Complexity `json:"complexity"`
	DomainContext        string     `json:"domainContext,omitempty"`
	EstimatedSubtasks    int        `json:"estimatedSubtasks,omitempty"`
}

// DefaultAnalysis is what Analyze returns when the worker call or the
// parse fails: a neutral classification the rest of the pipeline can
// always act on.
func DefaultAnalysis() TaskAnalysis {
	return TaskAnalysis{
		TaskType:          "unknown",
		Complexity:        ComplexityModerate,
		EstimatedSubtasks: 1,
	}
}

// Analyzer runs the analysis and decomposition worker calls
type Analyzer struct {
	invoker   workers.Invoker
	directory workers.Directory
	prompts   prompts.Builder
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(invoker workers.Invoker, directory workers.Directory, builder prompts.Builder, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		invoker:   invoker,
		directory: directory,
		prompts:   builder,
		logger:    logger,
	}
}

// Analyze classifies the request. It never returns an error: any worker
// or parse failure degrades to DefaultAnalysis.
func (a *Analyzer) Analyze(ctx context.Context, query, workerID, conversationID string) TaskAnalysis {
	candidates := a.listCandidates(ctx)

	res, err := a.invoker.Invoke(ctx, workerID, conversationID, a.prompts.Analysis(query, candidates))
	metrics.RecordInvocation("analysis", err == nil && res.Success)
	if err != nil || !res.Success {
		a.logger.Warn("Analysis worker call failed, using default analysis",
			zap.String("worker_id", workerID),
			zap.Error(err),
			zap.String("worker_error", res.Error),
		)
		metrics.AnalysisFallbacks.Inc()
		return DefaultAnalysis()
	}

	parsed, err := parseAnalysis(res.Text)
	if err != nil {
		a.logger.Warn("Analysis response unparseable, using default analysis",
			zap.String("worker_id", workerID),
			zap.Error(err),
		)
		metrics.AnalysisFallbacks.Inc()
		return DefaultAnalysis()
	}
	return parsed
}

// Decompose turns the request into a subtask graph. Simple requests skip
// the decomposition call entirely and become a single subtask; so does
// any decomposition whose output cannot be salvaged.
func (a *Analyzer) Decompose(ctx context.Context, query, workerID, conversationID string) []*session.Subtask {
	taskAnalysis := a.Analyze(ctx, query, workerID, conversationID)

	if taskAnalysis.Complexity == ComplexitySimple {
		a.logger.Debug("Simple request, skipping decomposition",
			zap.String("task_type", taskAnalysis.TaskType),
		)
		return a.singleSubtask(query, taskAnalysis)
	}

	candidates := a.listCandidates(ctx)
	prompt := a.prompts.Decomposition(query, taskAnalysis.TaskType, taskAnalysis.RequiredCapabilities, candidates)

	res, err := a.invoker.Invoke(ctx, workerID, conversationID, prompt)
	metrics.RecordInvocation("decomposition", err == nil && res.Success)
	if err != nil || !res.Success {
		a.logger.Warn("Decomposition worker call failed, falling back to single subtask",
			zap.String("worker_id", workerID),
			zap.Error(err),
			zap.String("worker_error", res.Error),
		)
		metrics.DecompositionFallbacks.Inc()
		return a.singleSubtask(query, taskAnalysis)
	}

	subtasks, err := a.parseDecomposition(res.Text)
	if err != nil || len(subtasks) == 0 {
		a.logger.Warn("Decomposition response unparseable, falling back to single subtask",
			zap.String("worker_id", workerID),
			zap.Error(err),
		)
		metrics.DecompositionFallbacks.Inc()
		return a.singleSubtask(query, taskAnalysis)
	}

	metrics.DecompositionSubtasks.Observe(float64(len(subtasks)))
	return subtasks
}

func (a *Analyzer) listCandidates(ctx context.Context) []workers.Definition {
	defs, err := a.directory.ListWorkers(ctx)
	if err != nil {
		a.logger.Warn("Worker listing failed during analysis", zap.Error(err))
		return nil
	}
	return defs
}

func (a *Analyzer) singleSubtask(query string, taskAnalysis TaskAnalysis) []*session.Subtask {
	caps := make([]workers.CapabilityID, 0, len(taskAnalysis.RequiredCapabilities))
	for _, c := range taskAnalysis.RequiredCapabilities {
		caps = append(caps, workers.CapabilityID(c))
	}
	return []*session.Subtask{{
		ID:                   uuid.New().String(),
		Description:          query,
		RequiredCapabilities: caps,
		Status:               session.SubtaskPending,
	}}
}

func parseAnalysis(text string) (TaskAnalysis, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return TaskAnalysis{}, err
	}

	var parsed struct {
		TaskType             string   `json:"taskType"`
		RequiredCapabilities []string `json:"requiredCapabilities"`
		Complexity           string   `json:"complexity"`
		DomainContext        string   `json:"domainContext"`
		EstimatedSubtasks    int      `json:"estimatedSubtasks"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return TaskAnalysis{}, fmt.Errorf("unmarshal analysis: %w", err)
	}
	if parsed.TaskType == "" || parsed.Complexity == "" || parsed.RequiredCapabilities == nil {
		return TaskAnalysis{}, fmt.Errorf("analysis response missing required fields")
	}

	out := TaskAnalysis{
		TaskType:             parsed.TaskType,
		RequiredCapabilities: parsed.RequiredCapabilities,
		Complexity:           coerceComplexity(parsed.Complexity),
		DomainContext:        parsed.DomainContext,
		EstimatedSubtasks:    parsed.EstimatedSubtasks,
	}
	if out.EstimatedSubtasks < 1 {
		out.EstimatedSubtasks = 1
	}
	return out, nil
}

// coerceComplexity maps anything outside the known grades to moderate
func coerceComplexity(s string) Complexity {
	switch Complexity(strings.ToLower(strings.TrimSpace(s))) {
	case ComplexitySimple:
		return ComplexitySimple
	case ComplexityComplex:
		return ComplexityComplex
	default:
		return ComplexityModerate
	}
}

type decompositionItem struct {
	Description          string        `json:"description"`
	RequiredCapabilities []string      `json:"requiredCapabilities"`
	Dependencies         []interface{} `json:"dependencies"`
}

// parseDecomposition builds subtasks from the worker's JSON array. Each
// subtask gets a fresh ID; dependency entries may be a 1-based index into
// the array or a subtask ID string. Unresolvable references are dropped,
// not fatal: the graph degrades rather than the run aborting.
func (a *Analyzer) parseDecomposition(text string) ([]*session.Subtask, error) {
	raw, err := extractJSONArray(text)
	if err != nil {
		return nil, err
	}

	var items []decompositionItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshal decomposition: %w", err)
	}

	subtasks := make([]*session.Subtask, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			a.logger.Warn("Dropping decomposition item with empty description")
			continue
		}
		caps := make([]workers.CapabilityID, 0, len(item.RequiredCapabilities))
		for _, c := range item.RequiredCapabilities {
			caps = append(caps, workers.CapabilityID(c))
		}
		id := uuid.New().String()
		ids = append(ids, id)
		subtasks = append(subtasks, &session.Subtask{
			ID:                   id,
			Description:          item.Description,
			RequiredCapabilities: caps,
			Status:               session.SubtaskPending,
		})
	}

	// Second pass: resolve dependency references now that all IDs exist.
	// Items dropped above shift later indices, which matches what the
	// worker sees: indices refer to the emitted array order.
	kept := 0
	for _, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			continue
		}
		st := subtasks[kept]
		kept++
		for _, dep := range item.Dependencies {
			if resolved, ok := a.resolveDependency(dep, ids, st.ID); ok {
				st.Dependencies = append(st.Dependencies, resolved)
			}
		}
	}
	return subtasks, nil
}

// resolveDependency maps one raw dependency entry to a generated subtask
// ID. Accepts a 1-based numeric index (number or numeric string) or an
// exact subtask ID. Anything else is dropped with a warning.
func (a *Analyzer) resolveDependency(dep interface{}, ids []string, selfID string) (string, bool) {
	switch v := dep.(type) {
	case float64:
		idx := int(v)
		if idx >= 1 && idx <= len(ids) && ids[idx-1] != selfID {
			return ids[idx-1], true
		}
	case string:
		if idx, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			if idx >= 1 && idx <= len(ids) && ids[idx-1] != selfID {
				return ids[idx-1], true
			}
		} else {
			for _, id := range ids {
				if id == v && id != selfID {
					return id, true
				}
			}
		}
	}
	a.logger.Warn("Dropping unresolvable subtask dependency",
		zap.Any("dependency", dep),
	)
	return "", false
}
