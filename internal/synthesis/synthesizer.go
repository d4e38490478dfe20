// Package synthesis merges a session's subtask outcomes into one final
// answer via the orchestrator worker.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openfleet/orchestrator/internal/metrics"
	"github.com/openfleet/orchestrator/internal/prompts"
	"github.com/openfleet/orchestrator/internal/session"
	"github.com/openfleet/orchestrator/internal/workers"
)

// Synthesizer produces the final response for a session
type Synthesizer struct {
	invoker workers.Invoker
	prompts prompts.Builder
	logger  *zap.Logger
}

// NewSynthesizer creates a synthesizer
func NewSynthesizer(invoker workers.Invoker, builder prompts.Builder, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{invoker: invoker, prompts: builder, logger: logger}
}

// Synthesize summarizes every subtask and asks the orchestrator worker
// for the final answer. A failed worker call degrades to a synthetic
// error string rather than aborting the run.
func (s *Synthesizer) Synthesize(ctx context.Context, sess *session.ExecutionSession, orchestratorWorkerID string) string {
	summary := SummarizeSubtasks(sess)
	prompt := s.prompts.Synthesis(sess.OriginalQuery, summary)

	res, err := s.invoker.Invoke(ctx, orchestratorWorkerID, sess.ConversationID, prompt)
	metrics.RecordInvocation("synthesis", err == nil && res.Success)
	if err != nil {
		s.logger.Warn("Synthesis worker call failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return fmt.Sprintf("Error synthesizing results: %s", err.Error())
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "worker reported failure"
		}
		s.logger.Warn("Synthesis worker reported failure",
			zap.String("session_id", sess.ID),
			zap.String("error", msg),
		)
		return fmt.Sprintf("Error synthesizing results: %s", msg)
	}
	return res.Text
}

// SummarizeSubtasks renders one line per subtask: its status, description,
// and result (or "No result" when absent).
func SummarizeSubtasks(sess *session.ExecutionSession) string {
	var sb strings.Builder
	for _, st := range sess.Subtasks {
		result := st.Result
		if result == "" {
			result = "No result"
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", st.Status, st.Description, result)
	}
	return sb.String()
}
