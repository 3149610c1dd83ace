package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"

	"github.com/haskel/agupredict/internal/forecast"
	"github.com/haskel/agupredict/internal/invoker"
	"github.com/haskel/agupredict/internal/monitor"
	"github.com/haskel/agupredict/internal/server/middleware"
	"github.com/haskel/agupredict/internal/stats"
)

// Fixed client-facing failure messages. Script output never reaches the
// client on failure.
const (
	MessageTrainFailed   = "Error while training the model"
	MessagePredictFailed = "Error while predicting the consumption"
	MessageInvalidBody   = "invalid request body"
	MessageBodyTooLarge  = "request body too large"
)

type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ReadyResponse struct {
	Ready    bool     `json:"ready"`
	Message  string   `json:"message,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, InfoResponse{
		Name:    "agupredict",
		Version: s.version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady reports whether a script invocation could start right now.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	problems := s.readinessProblems(r.Context())
	if len(problems) > 0 {
		s.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Ready:    false,
			Message:  "scripts are not runnable",
			Problems: problems,
		})
		return
	}

	s.writeJSON(w, http.StatusOK, ReadyResponse{Ready: true})
}

func (s *Server) readinessProblems(ctx context.Context) []string {
	sc := s.config.Scripts
	var problems []string

	if info, err := os.Stat(sc.Dir); err != nil {
		problems = append(problems, "scripts dir: "+err.Error())
	} else if !info.IsDir() {
		problems = append(problems, "scripts dir: not a directory")
	}

	for _, path := range []string{sc.TrainPath(), sc.PredictPath()} {
		if _, err := os.Stat(path); err != nil {
			problems = append(problems, "script: "+err.Error())
		}
	}

	if _, err := exec.LookPath(sc.Interpreter); err != nil {
		problems = append(problems, "interpreter: "+err.Error())
	}

	if sc.MinAvailableMemoryMB > 0 {
		want := uint64(sc.MinAvailableMemoryMB) << 20
		mem, err := monitor.HostMemory(ctx)
		switch {
		case err != nil:
			problems = append(problems, "memory: "+err.Error())
		case mem.AvailableBytes < want:
			problems = append(problems, fmt.Sprintf("memory: %d MiB available, %d MiB required",
				mem.AvailableBytes>>20, sc.MinAvailableMemoryMB))
		}
	}

	return problems
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var in forecast.TrainInput
	if !s.decodeBody(w, r, &in) {
		return
	}

	res, err := s.forecaster.Train(r.Context(), r.PathValue("agu"), in)
	if err != nil {
		s.writeFailure(w, err, MessageTrainFailed)
		return
	}

	s.writeJSON(w, http.StatusOK, forecast.TrainingOutput{Training: res.Payload})
}

// handlePredict answers with the raw result line, or with the parsed
// records when called with ?format=list.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var in forecast.PredictInput
	if !s.decodeBody(w, r, &in) {
		return
	}

	res, err := s.forecaster.Predict(r.Context(), r.PathValue("agu"), in)
	if err != nil {
		s.writeFailure(w, err, MessagePredictFailed)
		return
	}

	if r.URL.Query().Get("format") != "list" {
		s.writeJSON(w, http.StatusOK, forecast.PredictionOutput{Prediction: res.Payload})
		return
	}

	list, err := forecast.ParsePredictions(res.Payload)
	if err != nil {
		s.logger.Warn("prediction result is not a record list",
			"id", res.ID,
			"error", err,
		)
		w.Header().Set(middleware.FailureKindHeader, string(invoker.KindValidation))
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: MessagePredictFailed})
		return
	}

	s.writeJSON(w, http.StatusOK, forecast.PredictionList{PredictionList: list})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	operation := r.URL.Query().Get("operation")

	if operation != "" && operation != forecast.OperationTrain && operation != forecast.OperationPredict {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "unknown operation"})
		return
	}

	if s.tracker == nil {
		s.writeJSON(w, http.StatusOK, &stats.AllStats{Operations: map[string]*stats.OperationStats{}})
		return
	}

	if operation != "" {
		opStats := s.tracker.GetOperationStats(operation)
		if opStats == nil {
			opStats = &stats.OperationStats{Operation: operation, Failed: map[string]int64{}}
		}
		s.writeJSON(w, http.StatusOK, opStats)
		return
	}

	s.writeJSON(w, http.StatusOK, s.tracker.GetStats())
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Message: MessageBodyTooLarge})
			return false
		}
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: MessageInvalidBody})
		return false
	}
	return true
}

// writeFailure maps any failure to 400 with the operation's fixed
// message. The failure kind goes to a header, never the script output.
func (s *Server) writeFailure(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, forecast.ErrInvalidInput) {
		s.logger.Debug("rejected request", "error", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: MessageInvalidBody})
		return
	}

	if kind := invoker.KindOf(err); kind != "" {
		w.Header().Set(middleware.FailureKindHeader, string(kind))
	} else {
		s.logger.Error("unexpected forecast error", "error", err)
	}

	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status,
		)
	}
}
