// Package orchestrator coordinates teams of LLM-backed workers. A host
// embeds the engine, hands it a worker directory and an invoker, and
// submits requests; the engine analyzes each request, decomposes it into
// a dependency-ordered subtask graph, routes subtasks to workers by
// capability, executes independent subtasks concurrently, and synthesizes
// the results into one final response.
//
// The implementation lives under internal/; this package is the surface
// hosts import.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openfleet/orchestrator/internal/config"
	internal "github.com/openfleet/orchestrator/internal/orchestrator"
	"github.com/openfleet/orchestrator/internal/session"
	"github.com/openfleet/orchestrator/internal/workers"
)

// Engine runs orchestrations. Safe for concurrent use; each Execute call
// is an independent run.
type Engine = internal.Orchestrator

type (
	// Result is the terminal output of one orchestration run
	Result = internal.Result
	// Status is the read-only observability surface for pollers
	Status = internal.Status

	// Config carries the engine's tuning knobs
	Config = config.Config

	// Directory supplies worker definitions to the engine
	Directory = workers.Directory
	// Invoker executes a worker with a prompt; the host implements this
	// against its LLM backend
	Invoker = workers.Invoker
	// Definition is a worker record
	Definition = workers.Definition
	// Capability describes one thing a worker can do
	Capability = workers.Capability
	// CapabilityID is an opaque capability identifier
	CapabilityID = workers.CapabilityID
	// InvocationResult is what a worker call returns
	InvocationResult = workers.InvocationResult
	// ToolOutcome summarizes one tool invocation performed by a worker
	ToolOutcome = workers.ToolOutcome
	// StaticDirectory is an in-memory Directory for hosts that register
	// workers at startup
	StaticDirectory = workers.StaticDirectory

	// Subtask is one node of a request's decomposition graph
	Subtask = session.Subtask
	// SessionStore holds execution sessions for diagnostics and mirroring
	SessionStore = session.Store
)

var (
	// ErrWorkerNotFound is returned when a worker doesn't exist in the directory
	ErrWorkerNotFound = workers.ErrWorkerNotFound
	// ErrSessionNotFound is returned when a session doesn't exist
	ErrSessionNotFound = session.ErrSessionNotFound
)

// New builds an engine with the stock prompt set and the scheduling knobs
// from cfg. A nil cfg uses defaults.
func New(directory Directory, invoker Invoker, cfg *Config, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return internal.NewFromConfig(directory, invoker, cfg, logger)
}

// NewStaticDirectory creates a directory pre-populated with the given workers
func NewStaticDirectory(defs ...Definition) *StaticDirectory {
	return workers.NewStaticDirectory(defs...)
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads configuration from the file named by CONFIG_PATH
// (default ./orchestrator.yaml), with ORCHESTRATOR_* environment
// overrides. A missing file is not an error.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// LoadConfigFile reads configuration from an explicit path
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// AttachRedisMirror connects to Redis and makes the engine write session
// snapshots through to it, keyed orchestration:session:<id> with the
// given TTL. Call before the first Execute.
func AttachRedisMirror(e *Engine, addr string, ttl time.Duration, logger *zap.Logger) error {
	mirror, err := session.NewRedisMirror(addr, ttl, logger)
	if err != nil {
		return err
	}
	e.Store().WithMirror(mirror)
	return nil
}

// OpenPGDirectory connects to Postgres and returns a directory reading
// worker definitions from the workers and worker_capabilities tables.
func OpenPGDirectory(ctx context.Context, dsn string, logger *zap.Logger) (Directory, error) {
	db, err := workers.OpenPG(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return workers.NewPGDirectory(db, logger), nil
}
