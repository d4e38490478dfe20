// Package orchestrator sequences one request through the whole pipeline:
// create session, analyze and decompose, select workers, schedule
// execution, synthesize, finalize. It is the single boundary where a run
// either fully succeeds or reports a structured failure; no error
// escapes Execute.
package orchestrator

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openfleet/orchestrator/internal/analysis"
	"github.com/openfleet/orchestrator/internal/config"
	"github.com/openfleet/orchestrator/internal/metrics"
	"github.com/openfleet/orchestrator/internal/prompts"
	"github.com/openfleet/orchestrator/internal/scheduler"
	"github.com/openfleet/orchestrator/internal/selection"
	"github.com/openfleet/orchestrator/internal/session"
	"github.com/openfleet/orchestrator/internal/synthesis"
	"github.com/openfleet/orchestrator/internal/workers"
)

// Result is the terminal output of one orchestration run
type Result struct {
	SessionID        string            `json:"session_id"`
	FinalResponse    string            `json:"final_response"`
	Subtasks         []session.Subtask `json:"subtasks"`
	SubtasksExecuted int               `json:"subtasks_executed"`
	WorkersInvolved  []string          `json:"workers_involved"`
	CompletionTimeMs int64             `json:"completion_time_ms"`
	Success          bool              `json:"success"`
	Error            string            `json:"error,omitempty"`
}

// Status is the read-only observability surface for external pollers
type Status struct {
	ActiveSessions    []string                     `json:"active_sessions"`
	SubtasksBySession map[string][]session.Subtask `json:"subtasks_by_session"`
}

// Orchestrator is the facade over the orchestration pipeline
type Orchestrator struct {
	store       *session.Store
	analyzer    *analysis.Analyzer
	selector    *selection.Selector
	scheduler   *scheduler.Scheduler
	synthesizer *synthesis.Synthesizer
	directory   workers.Directory
	logger      *zap.Logger
}

// New wires an orchestrator from pre-built components
func New(
	store *session.Store,
	analyzer *analysis.Analyzer,
	selector *selection.Selector,
	sched *scheduler.Scheduler,
	synthesizer *synthesis.Synthesizer,
	directory workers.Directory,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:       store,
		analyzer:    analyzer,
		selector:    selector,
		scheduler:   sched,
		synthesizer: synthesizer,
		directory:   directory,
		logger:      logger,
	}
}

// NewFromConfig builds the full pipeline with the stock prompt set and
// the scheduling knobs from cfg. The host supplies the worker directory
// and invoker; a session mirror can be attached via Store().WithMirror.
func NewFromConfig(directory workers.Directory, invoker workers.Invoker, cfg *config.Config, logger *zap.Logger) *Orchestrator {
	builder := prompts.NewDefaultBuilder()

	schedCfg := scheduler.Config{
		MaxConcurrentSubtasks: cfg.Scheduler.MaxConcurrentSubtasks,
		SubtaskTimeout:        cfg.SubtaskTimeout(),
	}
	if cfg.Scheduler.RateLimitPerSecond > 0 {
		burst := cfg.Scheduler.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		schedCfg.Limiter = rate.NewLimiter(rate.Limit(cfg.Scheduler.RateLimitPerSecond), burst)
	}

	store := session.NewStore(logger)
	return New(
		store,
		analysis.NewAnalyzer(invoker, directory, builder, logger),
		selection.NewSelector(directory, logger),
		scheduler.New(invoker, builder, schedCfg, logger),
		synthesis.NewSynthesizer(invoker, builder, logger),
		directory,
		logger,
	)
}

// Store exposes the session store for mirror attachment and diagnostics
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// Execute runs one request end to end. It never returns an error: any
// failure is folded into the Result.
func (o *Orchestrator) Execute(ctx context.Context, conversationID, query, orchestratorWorkerID string) Result {
	start := time.Now()
	metrics.OrchestrationsStarted.Inc()

	sess := o.store.Create(ctx, conversationID, query, orchestratorWorkerID)

	final, err := o.run(ctx, sess)
	elapsed := time.Since(start)

	if err != nil {
		o.finalize(ctx, sess, session.StatusFailed, err.Error())
		metrics.RecordOrchestration("failed", elapsed.Seconds())
		o.logger.Error("Orchestration failed",
			zap.String("session_id", sess.ID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return Result{
			SessionID:        sess.ID,
			FinalResponse:    err.Error(),
			Subtasks:         sess.SnapshotSubtasks(),
			SubtasksExecuted: subtasksExecuted(sess),
			WorkersInvolved:  workersInvolved(sess),
			CompletionTimeMs: elapsed.Milliseconds(),
			Success:          false,
			Error:            err.Error(),
		}
	}

	o.resolveWorkerNames(ctx, sess)
	o.finalize(ctx, sess, session.StatusCompleted, "")
	metrics.RecordOrchestration("completed", elapsed.Seconds())

	o.logger.Info("Orchestration completed",
		zap.String("session_id", sess.ID),
		zap.Int("subtasks", len(sess.Subtasks)),
		zap.Duration("elapsed", elapsed),
	)

	return Result{
		SessionID:        sess.ID,
		FinalResponse:    final,
		Subtasks:         sess.SnapshotSubtasks(),
		SubtasksExecuted: subtasksExecuted(sess),
		WorkersInvolved:  workersInvolved(sess),
		CompletionTimeMs: elapsed.Milliseconds(),
		Success:          true,
	}
}

// GetOrchestrationStatus returns subtask snapshots for the given session,
// or for all active sessions when sessionID is empty. Snapshots are deep
// copies: two calls without an intervening run are identical, and a
// running scheduler can't race the caller.
func (o *Orchestrator) GetOrchestrationStatus(sessionID string) (Status, error) {
	status := Status{SubtasksBySession: make(map[string][]session.Subtask)}

	if sessionID != "" {
		sess, err := o.store.Get(sessionID)
		if err != nil {
			return Status{}, err
		}
		if sess.Active() {
			status.ActiveSessions = append(status.ActiveSessions, sess.ID)
		}
		status.SubtasksBySession[sess.ID] = sess.SnapshotSubtasks()
		return status, nil
	}

	ids := o.store.ListActive()
	sort.Strings(ids)
	for _, id := range ids {
		sess, err := o.store.Get(id)
		if err != nil {
			continue
		}
		status.ActiveSessions = append(status.ActiveSessions, id)
		status.SubtasksBySession[id] = sess.SnapshotSubtasks()
	}
	return status, nil
}

// GetCurrentExecutingWorker reports the worker currently mid-invocation
// for the conversation, if any.
func (o *Orchestrator) GetCurrentExecutingWorker(conversationID string) (string, bool) {
	return o.scheduler.CurrentExecutingWorker(conversationID)
}

func (o *Orchestrator) run(ctx context.Context, sess *session.ExecutionSession) (string, error) {
	subtasks := o.analyzer.Decompose(ctx, sess.OriginalQuery, sess.OrchestratorWorkerID, sess.ConversationID)
	sess.Lock()
	sess.Subtasks = subtasks
	sess.Status = session.StatusExecuting
	sess.Unlock()
	o.store.Sync(ctx, sess)

	// Every subtask gets an assignee before scheduling begins; the
	// orchestrator worker is the last resort when selection comes up empty.
	for _, st := range sess.Subtasks {
		sel, err := o.selector.Select(ctx, st, sess.OrchestratorWorkerID)
		workerID := sess.OrchestratorWorkerID
		switch {
		case err != nil:
			o.logger.Warn("Worker selection errored, falling back to orchestrator worker",
				zap.String("subtask_id", st.ID),
				zap.Error(err),
			)
		case sel == nil:
			o.logger.Info("No worker matched, falling back to orchestrator worker",
				zap.String("subtask_id", st.ID),
			)
		default:
			workerID = sel.WorkerID
		}
		sess.Lock()
		st.AssignedWorkerID = workerID
		st.Status = session.SubtaskAssigned
		sess.Unlock()
	}

	if err := o.scheduler.Run(ctx, sess); err != nil {
		return "", err
	}

	return o.synthesizer.Synthesize(ctx, sess, sess.OrchestratorWorkerID), nil
}

func (o *Orchestrator) finalize(ctx context.Context, sess *session.ExecutionSession, status session.Status, errMsg string) {
	now := time.Now()
	sess.Lock()
	sess.Status = status
	sess.CompletedAt = &now
	sess.Error = errMsg
	sess.Unlock()
	o.store.Sync(ctx, sess)
}

// resolveWorkerNames fills in display names for observability
func (o *Orchestrator) resolveWorkerNames(ctx context.Context, sess *session.ExecutionSession) {
	names := make(map[string]string)
	for _, st := range sess.Subtasks {
		if st.AssignedWorkerID == "" {
			continue
		}
		if _, ok := names[st.AssignedWorkerID]; ok {
			continue
		}
		var name string
		if def, err := o.directory.GetWorker(ctx, st.AssignedWorkerID); err == nil {
			name = def.Name
		}
		names[st.AssignedWorkerID] = name
	}

	sess.Lock()
	for _, st := range sess.Subtasks {
		st.AssignedWorkerName = names[st.AssignedWorkerID]
	}
	sess.Unlock()
}

// subtasksExecuted counts the subtasks that actually ran to a settled
// state; a fatal scheduling error can leave some never started.
func subtasksExecuted(sess *session.ExecutionSession) int {
	n := 0
	for _, st := range sess.Subtasks {
		if st.Status.Terminal() {
			n++
		}
	}
	return n
}

// workersInvolved returns the distinct assignees, names preferred over IDs
func workersInvolved(sess *session.ExecutionSession) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, st := range sess.Subtasks {
		label := st.AssignedWorkerName
		if label == "" {
			label = st.AssignedWorkerID
		}
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
