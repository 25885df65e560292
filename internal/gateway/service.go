// Package gateway serves the HTTP API: project uploads, asynchronous
// generation runs with live progress over SSE and WebSocket, document
// download and knowledge-base queries.
package gateway

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"laddergen/internal/artifact"
	"laddergen/internal/classify"
	apperr "laddergen/internal/errors"
	"laddergen/internal/llm"
	"laddergen/internal/metrics"
	"laddergen/internal/parser"
	"laddergen/internal/pipeline"
	"laddergen/internal/prompts"
	"laddergen/internal/refine"
	"laddergen/internal/retrieve"
	"laddergen/internal/runctx"
	"laddergen/internal/rungen"
	"laddergen/internal/skeleton"
	"laddergen/internal/util/jsonutil"
)

// maxUploadBytes bounds project uploads; logic sheets are small.
const maxUploadBytes = 10 << 20

// Service handles the REST API. Collaborators are injected; Retriever
// and Profiles may be nil when those features are not configured.
type Service struct {
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
	Artifacts artifact.Store
	LLM       llm.Client
	Retriever *retrieve.Retriever
	Profiles  *prompts.Loader
	Hub       *Hub
	Runs      *RunManager

	GenRetries    int
	MaxIterations int
	Workers       int
}

// uploadRecord is the stored form of a project upload.
type uploadRecord struct {
	Name     string           `json:"name"`
	Machines []parser.Machine `json:"machines"`
	Warnings []parser.Warning `json:"warnings,omitempty"`
}

// CreateProject accepts a CSV logic sheet or JSON machines, stores the
// parsed upload, and returns the new project id.
func (s *Service) CreateProject(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))

	var (
		machines []parser.Machine
		warnings []parser.Warning
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		machines, err = parser.ParseJSON(body)
	} else {
		machines, warnings, err = parser.ParseCSV(bytes.NewReader(body), name)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(machines) == 0 {
		writeError(w, http.StatusBadRequest, "upload contains no machines")
		return
	}

	if name == "" {
		name = machines[0].Name + "_Project"
	}
	projectID := uuid.NewString()
	data, err := jsonutil.MarshalNoEscape(uploadRecord{Name: name, Machines: machines, Warnings: warnings})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode upload")
		return
	}
	if err := s.Artifacts.Put(r.Context(), artifact.UploadKey(projectID), data, "application/json"); err != nil {
		s.Log.Error().Err(err).Msg("store upload")
		writeError(w, http.StatusInternalServerError, "store upload")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"project_id": projectID,
		"name":       name,
		"machines":   len(machines),
		"warnings":   warnings,
	})
}

// Generate starts an asynchronous run for a stored project and returns
// its run id immediately.
func (s *Service) Generate(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	rec, err := s.loadUpload(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	opts := Options{UseRAG: s.Retriever != nil, Workers: s.Workers}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read options")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := jsonutil.DecodeStrict(body, &opts); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = s.Workers
	}
	profile, err := s.resolveProfile(opts.StyleProfile)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run := s.Runs.Create(r.Context(), projectID, opts)
	go s.execute(run.ID, projectID, rec, opts, profile)

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.ID})
}

// execute drives one run to completion in the background.
func (s *Service) execute(runID, projectID string, rec uploadRecord, opts Options, profile *prompts.StyleProfile) {
	ctx := runctx.WithRunID(context.Background(), runID)
	log := s.Log.With().Str("run_id", runID).Str("project_id", projectID).Logger()

	s.Runs.Update(ctx, runID, func(r *Run) { r.Status = RunRunning })
	s.Hub.Publish(Event{Type: "run_started", RunID: runID, Status: RunRunning})

	var retr *retrieve.Retriever
	if opts.UseRAG {
		retr = s.Retriever
	}
	p := &pipeline.Pipeline{
		Classifier: &classify.Classifier{Log: log},
		Skeleton:   &skeleton.Generator{},
		Generator: &rungen.Generator{
			LLM:        s.LLM,
			Retriever:  retr,
			Profile:    profile,
			MaxRetries: s.GenRetries,
			Workers:    opts.Workers,
			Log:        log,
			Metrics:    s.Metrics,
			Progress: func(done, total int, routine string) {
				s.Hub.Publish(Event{Type: "routine_done", RunID: runID, Routine: routine, Done: done, Total: total})
			},
		},
		Refiner: &refine.Loop{LLM: s.LLM, MaxIterations: s.MaxIterations, Log: log},
		Log:     log,
		Metrics: s.Metrics,
	}

	res, err := p.Run(ctx, rec.Machines, rec.Name)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		s.Runs.Finish(ctx, runID, RunFailed, err.Error())
		return
	}

	if err := s.Artifacts.Put(ctx, artifact.DocumentKey(projectID), []byte(res.Document), "application/xml"); err != nil {
		log.Error().Err(err).Msg("store document")
	}
	if report, err := jsonutil.MarshalNoEscapeIndent(res, "", "  "); err == nil {
		if err := s.Artifacts.Put(ctx, artifact.ReportKey(runID), report, "application/json"); err != nil {
			log.Error().Err(err).Msg("store report")
		}
	}

	s.Runs.Update(ctx, runID, func(r *Run) {
		r.Stats = &res.Stats
		v := res.Validation
		r.Validation = &v
		r.Iterations = res.Iterations
		r.Findings = res.Findings
	})
	s.Runs.Finish(ctx, runID, RunSucceeded, "")
}

// GetRun reports a run's status, stats and validation summary.
func (s *Service) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// WatchRun streams run events as server-sent events.
func (s *Service) WatchRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.Runs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the snapshot so no event between the two is lost.
	ch, cancel := s.Hub.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSE(w, Event{Type: "status", RunID: id, Status: run.Status})
	flusher.Flush()
	if run.Status == RunSucceeded || run.Status == RunFailed {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = wsPongWait * 9 / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WatchRunWS streams run events over a websocket with keepalive pings.
func (s *Service) WatchRunWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.Runs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch, cancelSub := s.Hub.Subscribe(id)
	defer cancelSub()

	send := func(ev Event) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(ev)
	}
	if err := send(Event{Type: "status", RunID: id, Status: run.Status}); err != nil {
		return
	}
	if run.Status == RunSucceeded || run.Status == RunFailed {
		return
	}

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := send(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GetDocument serves the final generated L5X for a project.
func (s *Service) GetDocument(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.Artifacts.Get(r.Context(), artifact.DocumentKey(r.PathValue("id")))
	if err != nil {
		if stderrors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not generated yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "load document")
		return
	}
	if contentType == "" {
		contentType = "application/xml"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

type knowledgeExample struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	RoutineType string  `json:"routine_type"`
	Description string  `json:"description,omitempty"`
	Content     string  `json:"content"`
	Similarity  float64 `json:"similarity"`
}

// QueryKnowledge answers a free-text similarity query over the
// indexed example corpus.
func (s *Service) QueryKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.Retriever == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval is not configured")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read query")
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := jsonutil.DecodeStrict(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	res := s.Retriever.ForQuery(r.Context(), req.Query)
	examples := make([]knowledgeExample, 0, len(res.Examples))
	for _, ex := range res.Examples {
		examples = append(examples, knowledgeExample{
			ID:          ex.ID,
			Title:       ex.Title,
			RoutineType: ex.RoutineType,
			Description: ex.Description,
			Content:     ex.Content,
			Similarity:  ex.Similarity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"examples": examples,
		"degraded": res.Degraded,
		"cause":    res.Cause,
	})
}

// Health is the liveness endpoint.
func (s *Service) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) loadUpload(ctx context.Context, projectID string) (uploadRecord, error) {
	data, _, err := s.Artifacts.Get(ctx, artifact.UploadKey(projectID))
	if err != nil {
		return uploadRecord{}, err
	}
	var rec uploadRecord
	if err := jsonutil.DecodeStrict(data, &rec); err != nil {
		return uploadRecord{}, err
	}
	return rec, nil
}

func (s *Service) resolveProfile(name string) (*prompts.StyleProfile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	if s.Profiles == nil {
		return nil, stderrors.New("style profiles are not configured")
	}
	return s.Profiles.ByName(name)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeSSE(w io.Writer, ev Event) {
	data, err := jsonutil.MarshalNoEscape(ev)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
}
