package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openfleet/orchestrator/internal/metrics"
)

// Mirror receives session snapshots for external observability. The store
// never reads a mirror back; the in-memory map is the source of truth.
type Mirror interface {
	Save(ctx context.Context, sess *ExecutionSession) error
}

// Store creates and looks up execution sessions. It owns no scheduling
// logic. Only one orchestration run ever mutates a given session, but the
// store itself is safe for concurrent reads from diagnostic callers while
// a run is active. Sessions are never evicted automatically; TTL eviction
// is the host's concern.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*ExecutionSession
	mirror   Mirror
	logger   *zap.Logger
}

// NewStore creates an empty session store
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		sessions: make(map[string]*ExecutionSession),
		logger:   logger,
	}
}

// WithMirror attaches a write-through mirror and returns the store
func (s *Store) WithMirror(m Mirror) *Store {
	s.mirror = m
	return s
}

// Create registers a new session for the given request and returns it
func (s *Store) Create(ctx context.Context, conversationID, query, orchestratorWorkerID string) *ExecutionSession {
	sess := &ExecutionSession{
		ID:                   uuid.New().String(),
		ConversationID:       conversationID,
		OrchestratorWorkerID: orchestratorWorkerID,
		OriginalQuery:        query,
		SharedMemory:         make(map[string]interface{}),
		Results:              make(map[string]string),
		Status:               StatusPreparing,
		CreatedAt:            time.Now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	active := s.countActiveLocked()
	s.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Set(float64(active))

	s.logger.Info("Created orchestration session",
		zap.String("session_id", sess.ID),
		zap.String("conversation_id", conversationID),
		zap.String("orchestrator_worker_id", orchestratorWorkerID),
	)

	s.mirrorSave(ctx, sess)
	return sess
}

// Get returns the session with the given ID
func (s *Store) Get(id string) (*ExecutionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ListActive returns the IDs of sessions still preparing or executing
func (s *Store) ListActive() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, sess := range s.sessions {
		if sess.Active() {
			out = append(out, id)
		}
	}
	return out
}

// Sync pushes the session's current state to the mirror, if configured,
// and refreshes the active-sessions gauge. Called by the facade after
// status transitions.
func (s *Store) Sync(ctx context.Context, sess *ExecutionSession) {
	s.mu.RLock()
	active := s.countActiveLocked()
	s.mu.RUnlock()
	metrics.SessionsActive.Set(float64(active))
	s.mirrorSave(ctx, sess)
}

func (s *Store) countActiveLocked() int {
	n := 0
	for _, sess := range s.sessions {
		if sess.Active() {
			n++
		}
	}
	return n
}

func (s *Store) mirrorSave(ctx context.Context, sess *ExecutionSession) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Save(ctx, sess); err != nil {
		s.logger.Warn("Session mirror write failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}
