package server

import (
	"net/http"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /stats", s.handleStats)

	// The AGU segment is optional and only used for logging; both forms
	// run the same script.
	mux.HandleFunc("POST /api/train", s.handleTrain)
	mux.HandleFunc("POST /api/train/{agu}", s.handleTrain)
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("POST /api/predict/{agu}", s.handlePredict)

	if s.config.Metrics.Enabled && s.metrics != nil {
		mux.Handle("GET "+s.config.Metrics.Path, s.metrics.Handler())
	}

	return mux
}
