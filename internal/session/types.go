package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/openfleet/orchestrator/internal/workers"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist
	ErrSessionNotFound = errors.New("session not found")
)

// Status is the lifecycle state of an orchestration session
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// SubtaskStatus is the lifecycle state of a single subtask
type SubtaskStatus string

const (
	SubtaskPending    SubtaskStatus = "pending"
	SubtaskAssigned   SubtaskStatus = "assigned"
	SubtaskInProgress SubtaskStatus = "in_progress"
	SubtaskCompleted  SubtaskStatus = "completed"
	SubtaskFailed     SubtaskStatus = "failed"
)

// Terminal reports whether the subtask has settled
func (s SubtaskStatus) Terminal() bool {
	return s == SubtaskCompleted || s == SubtaskFailed
}

// Subtask is one node of a request's decomposition graph
type Subtask struct {
	ID                   string                 `json:"id"`
	Description          string                 `json:"description"`
	RequiredCapabilities []workers.CapabilityID `json:"required_capabilities,omitempty"`
	Dependencies         []string               `json:"dependencies,omitempty"`
	Status               SubtaskStatus          `json:"status"`
	AssignedWorkerID     string                 `json:"assigned_worker_id,omitempty"`
	AssignedWorkerName   string                 `json:"assigned_worker_name,omitempty"`
	Result               string                 `json:"result,omitempty"`
}

// ExecutionSession holds all state for one orchestration run. It is owned
// by the Store and referenced, not copied, by every other component for
// the duration of the run. The embedded lock serializes the run's
// mutations against diagnostic readers: writers hold Lock around field
// updates, and Active, SnapshotSubtasks, and JSON marshaling take RLock,
// so status callers are safe while a run is live.
type ExecutionSession struct {
	sync.RWMutex `json:"-"`

	ID                   string                 `json:"id"`
	ConversationID       string                 `json:"conversation_id"`
	OrchestratorWorkerID string                 `json:"orchestrator_worker_id"`
	OriginalQuery        string                 `json:"original_query"`
	Subtasks             []*Subtask             `json:"subtasks"`
	SharedMemory         map[string]interface{} `json:"shared_memory,omitempty"`
	Results              map[string]string      `json:"results"`
	Status               Status                 `json:"status"`
	CreatedAt            time.Time              `json:"created_at"`
	CompletedAt          *time.Time             `json:"completed_at,omitempty"`
	Error                string                 `json:"error,omitempty"`
}

// SubtaskByID returns the subtask with the given ID, or nil
func (s *ExecutionSession) SubtaskByID(id string) *Subtask {
	for _, st := range s.Subtasks {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// SetSharedMemory writes a side artifact under the given key. Keys are
// written once per orchestration run by convention.
func (s *ExecutionSession) SetSharedMemory(key string, value interface{}) {
	if s.SharedMemory == nil {
		s.SharedMemory = make(map[string]interface{})
	}
	s.SharedMemory[key] = value
}

// SnapshotSubtasks returns deep copies of the session's subtasks, safe to
// hand to status/diagnostic callers while a run is active.
func (s *ExecutionSession) SnapshotSubtasks() []Subtask {
	s.RLock()
	defer s.RUnlock()
	out := make([]Subtask, 0, len(s.Subtasks))
	for _, st := range s.Subtasks {
		cp := *st
		cp.RequiredCapabilities = append([]workers.CapabilityID(nil), st.RequiredCapabilities...)
		cp.Dependencies = append([]string(nil), st.Dependencies...)
		out = append(out, cp)
	}
	return out
}

// Active reports whether the session is still running
func (s *ExecutionSession) Active() bool {
	s.RLock()
	defer s.RUnlock()
	return s.Status == StatusPreparing || s.Status == StatusExecuting
}

// MarshalJSON serializes the session under the read lock so mirrors can
// snapshot a live run.
func (s *ExecutionSession) MarshalJSON() ([]byte, error) {
	type plain ExecutionSession
	s.RLock()
	defer s.RUnlock()
	return json.Marshal((*plain)(s))
}
