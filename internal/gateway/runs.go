package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"laddergen/internal/artifact"
	apperr "laddergen/internal/errors"
	"laddergen/internal/ir"
	"laddergen/internal/pipeline"
	"laddergen/internal/refine"
	"laddergen/internal/util/jsonutil"
	"laddergen/internal/validate"
)

// Run statuses, in lifecycle order.
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Options are the per-run knobs a generate request may set.
type Options struct {
	UseRAG       bool   `json:"use_rag"`
	StyleProfile string `json:"style_profile,omitempty"`
	Workers      int    `json:"workers,omitempty"`
}

// Run is the persisted record of one generation run.
type Run struct {
	ID         string             `json:"id"`
	ProjectID  string             `json:"project_id"`
	Status     string             `json:"status"`
	Options    Options            `json:"options"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Error      string             `json:"error,omitempty"`
	Stats      *pipeline.Stats    `json:"stats,omitempty"`
	Validation *validate.Result   `json:"validation,omitempty"`
	Iterations []refine.Iteration `json:"iterations,omitempty"`
	Findings   []ir.Finding       `json:"findings,omitempty"`
}

// RunManager tracks runs in memory and mirrors every state change to
// the artifact store, so records survive a restart.
type RunManager struct {
	store artifact.Store
	hub   *Hub
	log   zerolog.Logger
	now   func() time.Time

	mu   sync.RWMutex
	runs map[string]*Run
}

func NewRunManager(store artifact.Store, hub *Hub, log zerolog.Logger) *RunManager {
	return &RunManager{
		store: store,
		hub:   hub,
		log:   log,
		now:   time.Now,
		runs:  map[string]*Run{},
	}
}

// Create registers a queued run for a project.
func (m *RunManager) Create(ctx context.Context, projectID string, opts Options) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    RunQueued,
		Options:   opts,
		StartedAt: m.now().UTC(),
	}
	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()
	m.persist(ctx, run)
	return run
}

// Get returns a copy of a run, falling back to the artifact store for
// runs started by a previous process.
func (m *RunManager) Get(ctx context.Context, id string) (Run, error) {
	m.mu.RLock()
	run, ok := m.runs[id]
	if ok {
		snapshot := *run
		m.mu.RUnlock()
		return snapshot, nil
	}
	m.mu.RUnlock()

	data, _, err := m.store.Get(ctx, artifact.RunKey(id))
	if err != nil {
		return Run{}, pkgerrors.Wrapf(apperr.ErrNotFound, "run %s", id)
	}
	var stored Run
	if err := jsonutil.DecodeStrict(data, &stored); err != nil {
		return Run{}, pkgerrors.Wrapf(err, "decode run %s", id)
	}
	return stored, nil
}

// Update mutates a run under the manager lock and persists the result.
func (m *RunManager) Update(ctx context.Context, id string, mutate func(*Run)) {
	m.mu.Lock()
	run, ok := m.runs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	mutate(run)
	snapshot := *run
	m.mu.Unlock()
	m.persist(ctx, &snapshot)
}

// Finish records the terminal status, stamps the finish time, persists
// and publishes the final event, then releases the run's watchers.
func (m *RunManager) Finish(ctx context.Context, id, status, message string) {
	m.Update(ctx, id, func(r *Run) {
		r.Status = status
		r.Error = message
		t := m.now().UTC()
		r.FinishedAt = &t
	})
	evType := "run_completed"
	if status == RunFailed {
		evType = "run_failed"
	}
	m.hub.Publish(Event{Type: evType, RunID: id, Status: status, Message: message})
	m.hub.CloseRun(id)
}

func (m *RunManager) persist(ctx context.Context, run *Run) {
	data, err := jsonutil.MarshalNoEscape(run)
	if err != nil {
		m.log.Error().Err(err).Str("run_id", run.ID).Msg("marshal run record")
		return
	}
	if err := m.store.Put(ctx, artifact.RunKey(run.ID), data, "application/json"); err != nil {
		m.log.Error().Err(err).Str("run_id", run.ID).Msg("persist run record")
	}
}
