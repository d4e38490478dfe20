package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"
)

// OpenPG connects to Postgres and verifies the connection
func OpenPG(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PGDirectory is a Postgres-backed Directory for deployments that keep
// worker definitions in a database. Expected schema:
//
//	workers(id TEXT PRIMARY KEY, name TEXT, is_orchestrator BOOLEAN)
//	worker_capabilities(worker_id TEXT, capability_id TEXT, name TEXT, description TEXT)
type PGDirectory struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPGDirectory creates a directory backed by the given database handle
func NewPGDirectory(db *sqlx.DB, logger *zap.Logger) *PGDirectory {
	return &PGDirectory{db: db, logger: logger}
}

type workerRow struct {
	ID             string `db:"id"`
	Name           string `db:"name"`
	IsOrchestrator bool   `db:"is_orchestrator"`
}

type capabilityRow struct {
	WorkerID     string `db:"worker_id"`
	CapabilityID string `db:"capability_id"`
	Name         string `db:"name"`
	Description  string `db:"description"`
}

// GetWorker returns the worker with the given ID
func (d *PGDirectory) GetWorker(ctx context.Context, id string) (*Definition, error) {
	var row workerRow
	err := d.db.GetContext(ctx, &row,
		`SELECT id, name, is_orchestrator FROM workers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkerNotFound
	} else if err != nil {
		return nil, fmt.Errorf("query worker: %w", err)
	}

	var caps []capabilityRow
	if err := d.db.SelectContext(ctx, &caps,
		`SELECT worker_id, capability_id, name, description
		 FROM worker_capabilities WHERE worker_id = $1
		 ORDER BY capability_id`, id); err != nil {
		return nil, fmt.Errorf("query worker capabilities: %w", err)
	}

	def := rowToDefinition(row, caps)
	return &def, nil
}

// ListWorkers returns every worker with its capabilities
func (d *PGDirectory) ListWorkers(ctx context.Context) ([]Definition, error) {
	var rows []workerRow
	if err := d.db.SelectContext(ctx, &rows,
		`SELECT id, name, is_orchestrator FROM workers ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}

	var caps []capabilityRow
	if err := d.db.SelectContext(ctx, &caps,
		`SELECT worker_id, capability_id, name, description
		 FROM worker_capabilities ORDER BY worker_id, capability_id`); err != nil {
		return nil, fmt.Errorf("list worker capabilities: %w", err)
	}

	byWorker := make(map[string][]capabilityRow)
	for _, c := range caps {
		byWorker[c.WorkerID] = append(byWorker[c.WorkerID], c)
	}

	out := make([]Definition, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToDefinition(row, byWorker[row.ID]))
	}
	return out, nil
}

func rowToDefinition(row workerRow, caps []capabilityRow) Definition {
	def := Definition{
		ID:             row.ID,
		Name:           row.Name,
		IsOrchestrator: row.IsOrchestrator,
	}
	for _, c := range caps {
		def.Capabilities = append(def.Capabilities, Capability{
			ID:          CapabilityID(c.CapabilityID),
			Name:        c.Name,
			Description: c.Description,
		})
	}
	return def
}
