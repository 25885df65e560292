package gateway

import "net/http"

// NewMux wires every route and wraps the mux with CORS and request
// logging.
func NewMux(s *Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/projects", s.CreateProject)
	mux.HandleFunc("POST /v1/projects/{id}/generate", s.Generate)
	mux.HandleFunc("GET /v1/projects/{id}/document", s.GetDocument)
	mux.HandleFunc("GET /v1/runs/{id}", s.GetRun)
	mux.HandleFunc("GET /v1/runs/{id}/watch", s.WatchRun)
	mux.HandleFunc("GET /v1/runs/{id}/ws", s.WatchRunWS)
	mux.HandleFunc("POST /v1/knowledge/query", s.QueryKnowledge)
	mux.HandleFunc("GET /healthz", s.Health)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	return CORS(RequestLog(s.Log)(mux))
}
