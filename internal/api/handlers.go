package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/notifyd/internal/domain"
	"github.com/mattjoyce/notifyd/internal/notification"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if s.deps.Depth != nil {
		d, err := s.deps.Depth(r.Context())
		if err != nil {
			s.logger.Error("failed to compute queue depth", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to compute queue depth")
			return
		}
		depth = d
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:    depth,
		PluginsLoaded: len(s.deps.Registry.All()),
	})
}

func (s *Server) handleNotifyAgent(w http.ResponseWriter, r *http.Request) {
	var agent domain.Agent
	if err := decodeBody(w, r, &agent); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if agent.UUID == "" {
		s.writeError(w, http.StatusBadRequest, "agent uuid is required")
		return
	}

	targets := s.deps.Registry.PluginsInterestedIn(string(notification.AgentStatusChanged))
	if err := s.deps.Notifier.NotifyAgentStatus(r.Context(), agent); err != nil {
		s.dispatchError(w, notification.AgentStatusChanged, err)
		return
	}
	respondJSON(w, http.StatusAccepted, NotifyResponse{
		Status:  "posted",
		Kind:    string(notification.AgentStatusChanged),
		Plugins: append([]string{}, targets.IDs()...),
	})
}

func (s *Server) handleNotifyStage(w http.ResponseWriter, r *http.Request) {
	var stage domain.Stage
	if err := decodeBody(w, r, &stage); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if stage.Identifier.PipelineName == "" || stage.Identifier.StageName == "" {
		s.writeError(w, http.StatusBadRequest, "identifier.pipeline_name and identifier.stage_name are required")
		return
	}

	targets := s.deps.Registry.PluginsInterestedIn(string(notification.StageStatusChanged))
	if err := s.deps.Notifier.NotifyStageStatus(r.Context(), stage); err != nil {
		s.dispatchError(w, notification.StageStatusChanged, err)
		return
	}
	respondJSON(w, http.StatusAccepted, NotifyResponse{
		Status:  "posted",
		Kind:    string(notification.StageStatusChanged),
		Plugins: append([]string{}, targets.IDs()...),
	})
}

// dispatchError maps dispatcher failures: a lookup fault means nothing was
// posted (502), anything else is a partial or total post failure (500).
func (s *Server) dispatchError(w http.ResponseWriter, kind notification.Kind, err error) {
	status := http.StatusInternalServerError
	if notification.IsLookupError(err) {
		status = http.StatusBadGateway
	}
	s.logger.Error("dispatch failed", "kind", kind, "error", err)
	s.writeError(w, status, err.Error())
}

func (s *Server) handleRecordBuildCause(w http.ResponseWriter, r *http.Request) {
	if s.deps.Causes == nil {
		s.writeError(w, http.StatusNotImplemented, "build cause store not configured")
		return
	}
	pipelineName := chi.URLParam(r, "pipeline")
	counter, err := strconv.Atoi(chi.URLParam(r, "counter"))
	if err != nil || counter < 1 {
		s.writeError(w, http.StatusBadRequest, "counter must be a positive integer")
		return
	}

	var cause domain.BuildCause
	if err := decodeBody(w, r, &cause); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Causes.Record(r.Context(), pipelineName, counter, cause); err != nil {
		s.logger.Error("failed to record build cause", "pipeline", pipelineName, "counter", counter, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to record build cause")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	plugins := s.deps.Registry.All()
	resp := PluginListResponse{Plugins: make([]PluginSummary, 0, len(plugins))}
	for _, p := range plugins {
		kinds := make([]string, 0, len(p.Notifications))
		for _, sub := range p.Notifications {
			kinds = append(kinds, sub.Name)
		}
		resp.Plugins = append(resp.Plugins, PluginSummary{
			ID:            p.ID,
			Version:       p.Version,
			Description:   p.Description,
			Notifications: kinds,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.deps.Registry.All()))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %s", strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
