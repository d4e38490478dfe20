// Package scheduler executes a session's subtask graph to completion.
// Ready subtasks run concurrently in waves; a subtask never starts before
// every dependency has settled, and one subtask's failure never aborts
// its siblings or dependents.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openfleet/orchestrator/internal/metrics"
	"github.com/openfleet/orchestrator/internal/prompts"
	"github.com/openfleet/orchestrator/internal/session"
	"github.com/openfleet/orchestrator/internal/workers"
)

// Config carries the hardening knobs. All of them are optional; the zero
// value schedules every ready subtask at once with no deadline.
type Config struct {
	// MaxConcurrentSubtasks caps in-flight worker calls within a wave.
	// Zero means no cap.
	MaxConcurrentSubtasks int
	// SubtaskTimeout bounds a single worker invocation. A timeout is
	// recorded as that subtask's failure, never as a fatal error.
	SubtaskTimeout time.Duration
	// Limiter, when set, paces worker invocations across waves.
	Limiter *rate.Limiter
}

// Scheduler runs subtask graphs. It also owns the per-conversation
// executing-worker map used as the anti-recursion guard.
type Scheduler struct {
	invoker workers.Invoker
	prompts prompts.Builder
	logger  *zap.Logger
	cfg     Config

	mu        sync.RWMutex
	executing map[string]string // conversation ID -> worker ID mid-invocation
}

// New creates a scheduler
func New(invoker workers.Invoker, builder prompts.Builder, cfg Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		invoker:   invoker,
		prompts:   builder,
		logger:    logger,
		cfg:       cfg,
		executing: make(map[string]string),
	}
}

// outcome is one subtask's settled result, applied to the session at the
// wave join so goroutines never write shared maps.
type outcome struct {
	success      bool
	result       string
	toolOutcomes []workers.ToolOutcome
	durationMs   float64
}

// Run executes every subtask in the session and returns once all of them
// have reached completed or failed. The only error it returns is the
// fatal SchedulingError for a graph that can never drain.
func (s *Scheduler) Run(ctx context.Context, sess *session.ExecutionSession) error {
	total := len(sess.Subtasks)
	if total == 0 {
		return nil
	}

	completed := make(map[string]struct{}, total)
	waves := 0

	for len(completed) < total {
		ready := s.readySet(sess, completed)
		if len(ready) == 0 {
			err := s.stuckError(sess, completed)
			s.logger.Error("Subtask graph cannot drain",
				zap.String("session_id", sess.ID),
				zap.Int("settled", len(completed)),
				zap.Int("total", total),
				zap.Error(err),
			)
			return err
		}

		waves++
		s.logger.Info("Launching subtask wave",
			zap.String("session_id", sess.ID),
			zap.Int("wave", waves),
			zap.Int("ready", len(ready)),
		)

		// Dependency context is built before fan-out so subtasks in the
		// same wave never observe each other's results.
		contexts := make([]string, len(ready))
		for i, st := range ready {
			contexts[i] = dependencyContext(sess, st)
		}

		outcomes := make([]outcome, len(ready))
		var sem chan struct{}
		if s.cfg.MaxConcurrentSubtasks > 0 {
			sem = make(chan struct{}, s.cfg.MaxConcurrentSubtasks)
		}
		var wg sync.WaitGroup
		for i, st := range ready {
			wg.Add(1)
			go func(i int, st *session.Subtask) {
				defer wg.Done()
				if sem != nil {
					sem <- struct{}{}
					defer func() { <-sem }()
				}
				outcomes[i] = s.executeSubtask(ctx, sess, st, contexts[i])
			}(i, st)
		}
		wg.Wait()

		// Join: apply all outcomes single-threaded, locked against
		// concurrent status readers.
		sess.Lock()
		for i, st := range ready {
			o := outcomes[i]
			if o.success {
				st.Status = session.SubtaskCompleted
				st.Result = o.result
				sess.Results[st.ID] = o.result
				if len(o.toolOutcomes) > 0 {
					sess.SetSharedMemory(toolMemoryKey(st.ID), o.toolOutcomes)
				}
			} else {
				st.Status = session.SubtaskFailed
				st.Result = o.result
			}
			completed[st.ID] = struct{}{}
			metrics.RecordSubtask(string(st.Status), o.durationMs)
		}
		sess.Unlock()
	}

	metrics.SchedulerWaves.Observe(float64(waves))
	s.logger.Info("Subtask graph drained",
		zap.String("session_id", sess.ID),
		zap.Int("waves", waves),
		zap.Int("subtasks", total),
	)
	return nil
}

// CurrentExecutingWorker reports the worker currently mid-invocation for
// the conversation, if any. External tooling uses this to reject a worker
// attempting to delegate to itself.
func (s *Scheduler) CurrentExecutingWorker(conversationID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.executing[conversationID]
	return id, ok
}

// readySet returns the assigned, unsettled subtasks whose dependencies
// have all settled. Failed dependencies count as settled: they deprive
// dependents of a result, not of the chance to run.
func (s *Scheduler) readySet(sess *session.ExecutionSession, completed map[string]struct{}) []*session.Subtask {
	var ready []*session.Subtask
	for _, st := range sess.Subtasks {
		if _, done := completed[st.ID]; done {
			continue
		}
		if st.Status != session.SubtaskAssigned {
			continue
		}
		ok := true
		for _, dep := range st.Dependencies {
			if _, settled := completed[dep]; !settled {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, st)
		}
	}
	return ready
}

func (s *Scheduler) executeSubtask(ctx context.Context, sess *session.ExecutionSession, st *session.Subtask, depContext string) outcome {
	sess.Lock()
	st.Status = session.SubtaskInProgress
	sess.Unlock()
	start := time.Now()

	fail := func(msg string) outcome {
		s.logger.Warn("Subtask failed",
			zap.String("session_id", sess.ID),
			zap.String("subtask_id", st.ID),
			zap.String("worker_id", st.AssignedWorkerID),
			zap.String("error", msg),
		)
		return outcome{
			success:    false,
			result:     fmt.Sprintf("Error: %s", msg),
			durationMs: float64(time.Since(start).Milliseconds()),
		}
	}

	if s.cfg.Limiter != nil {
		if err := s.cfg.Limiter.Wait(ctx); err != nil {
			return fail(err.Error())
		}
	}

	ictx := ctx
	if s.cfg.SubtaskTimeout > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(ctx, s.cfg.SubtaskTimeout)
		defer cancel()
	}

	prompt := s.prompts.SubtaskExecution(sess.OriginalQuery, st.Description, depContext)

	s.setExecuting(sess.ConversationID, st.AssignedWorkerID)
	defer s.clearExecuting(sess.ConversationID)

	res, err := s.invoker.Invoke(ictx, st.AssignedWorkerID, sess.ConversationID, prompt)
	durationMs := float64(time.Since(start).Milliseconds())
	metrics.RecordInvocation("subtask", err == nil && res.Success)

	if err != nil {
		return fail(err.Error())
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "worker reported failure"
		}
		return fail(msg)
	}

	s.logger.Debug("Subtask completed",
		zap.String("session_id", sess.ID),
		zap.String("subtask_id", st.ID),
		zap.String("worker_id", st.AssignedWorkerID),
		zap.Float64("duration_ms", durationMs),
	)
	return outcome{
		success:      true,
		result:       res.Text,
		toolOutcomes: res.ToolOutcomes,
		durationMs:   durationMs,
	}
}

// dependencyContext concatenates the stored results of the subtask's
// completed dependencies under their descriptions. Failed or resultless
// dependencies are omitted.
func dependencyContext(sess *session.ExecutionSession, st *session.Subtask) string {
	var sb strings.Builder
	for _, dep := range st.Dependencies {
		depTask := sess.SubtaskByID(dep)
		if depTask == nil || depTask.Status != session.SubtaskCompleted {
			continue
		}
		result, ok := sess.Results[dep]
		if !ok || result == "" {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n%s\n", depTask.Description, result)
	}
	return sb.String()
}

// stuckError classifies why the remaining subtasks can never run:
// dependencies on IDs absent from the session, or a true cycle.
func (s *Scheduler) stuckError(sess *session.ExecutionSession, completed map[string]struct{}) error {
	known := make(map[string]struct{}, len(sess.Subtasks))
	for _, st := range sess.Subtasks {
		known[st.ID] = struct{}{}
	}

	var stuck, missing []string
	seenMissing := make(map[string]struct{})
	for _, st := range sess.Subtasks {
		if _, done := completed[st.ID]; done {
			continue
		}
		stuck = append(stuck, st.ID)
		for _, dep := range st.Dependencies {
			if _, exists := known[dep]; !exists {
				if _, seen := seenMissing[dep]; !seen {
					seenMissing[dep] = struct{}{}
					missing = append(missing, dep)
				}
			}
		}
	}

	kind := ErrDependencyCycle
	label := "cycle"
	if len(missing) > 0 {
		kind = ErrUnresolvedDependency
		label = "unresolved_dependency"
	}
	metrics.SchedulingFailures.WithLabelValues(label).Inc()
	return &SchedulingError{Stuck: stuck, Missing: missing, kind: kind}
}

func toolMemoryKey(subtaskID string) string {
	return fmt.Sprintf("tools:%s", subtaskID)
}

func (s *Scheduler) setExecuting(conversationID, workerID string) {
	s.mu.Lock()
	s.executing[conversationID] = workerID
	s.mu.Unlock()
}

func (s *Scheduler) clearExecuting(conversationID string) {
	s.mu.Lock()
	delete(s.executing, conversationID)
	s.mu.Unlock()
}
