package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hexstrike/hexstrike/internal/orchestrator"
	"github.com/hexstrike/hexstrike/internal/types"
)

// errorResponse is the JSON error envelope. Taxonomy errors always come
// back as structured JSON, never bare 500 text.
type errorResponse struct {
	Error string          `json:"error"`
	Code  types.ErrorCode `json:"code,omitempty"`
}

// statusFor maps taxonomy codes onto HTTP statuses.
func statusFor(code types.ErrorCode) int {
	switch code {
	case types.PROFILE_INVALID_TARGET, types.PARAMS_INCOMPLETE, types.CATALOG_INVALID:
		return http.StatusBadRequest
	case types.TOOL_NOT_FOUND, types.PROCESS_NOT_FOUND:
		return http.StatusNotFound
	case types.ORCHESTRATOR_CLOSED:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := types.CodeOf(err)
	status := statusFor(code)
	if status >= 500 {
		s.logger.Error("request failed", "code", code, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}

// decodeJSON rejects malformed and unknown-field request bodies.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return types.WrapError(types.PROFILE_INVALID_TARGET, "malformed request body", err)
	}
	return nil
}

type analyzeRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleAnalyzeTarget(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	profile, err := s.profiler.Analyze(r.Context(), req.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

type selectToolsRequest struct {
	Target    string `json:"target"`
	Objective string `json:"objective"`
	Budget    int    `json:"budget,omitempty"`
}

type selectToolsResponse struct {
	Profile *types.TargetProfile `json:"profile"`
	Tools   []string             `json:"tools"`
}

func (s *Server) handleSelectTools(w http.ResponseWriter, r *http.Request) {
	var req selectToolsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	profile, err := s.profiler.Analyze(r.Context(), req.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tools := s.engine.SelectTools(profile, req.Objective, req.Budget)
	s.writeJSON(w, http.StatusOK, selectToolsResponse{Profile: profile, Tools: tools})
}

type runRequest struct {
	Target    string `json:"target"`
	Objective string `json:"objective"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if wantsEventStream(r) {
		s.streamRun(w, r, req)
		return
	}

	result, err := s.coord.Run(r.Context(), req.Target, req.Objective)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	active := s.orch.ListActive()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"processes": active,
		"count":     len(active),
	})
}

func (s *Server) handleProcessStatus(w http.ResponseWriter, r *http.Request) {
	handle, err := s.orch.Status(types.ID(r.PathValue("id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, handle)
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	id := types.ID(r.PathValue("id"))
	if err := s.orch.Terminate(id); err != nil {
		s.writeError(w, err)
		return
	}
	handle, err := s.orch.Status(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, handle)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats(r.Context()))
}

type invalidateRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Target) == "" {
		s.writeError(w, types.NewError(types.PROFILE_INVALID_TARGET, "target cannot be empty"))
		return
	}

	removed, err := s.cache.InvalidateTarget(r.Context(), req.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries_removed": removed})
}

// toolSummary joins a catalog descriptor with its execution stats.
type toolSummary struct {
	ID              string                  `json:"id"`
	Description     string                  `json:"description"`
	ApplicableTypes []types.TargetType      `json:"applicable_types"`
	BaseCost        int                     `json:"base_cost"`
	Stats           *orchestrator.ToolStats `json:"stats,omitempty"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	stats := s.orch.StatsSnapshot()

	descriptors := s.catalog.List()
	tools := make([]toolSummary, 0, len(descriptors))
	for _, d := range descriptors {
		summary := toolSummary{
			ID:              d.ID,
			Description:     d.Description,
			ApplicableTypes: d.ApplicableTypes,
			BaseCost:        d.BaseCost,
		}
		if st, ok := stats[d.ID]; ok {
			st := st
			summary.Stats = &st
		}
		tools = append(tools, summary)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": tools, "count": len(tools)})
}

// healthResponse is the component roll-up for GET /api/v1/health.
type healthResponse struct {
	State      types.HealthState             `json:"state"`
	Components map[string]types.HealthStatus `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]types.HealthStatus{
		"cache":        s.cache.Health(r.Context()),
		"orchestrator": s.orch.Health(r.Context()),
		"coordinator":  s.coord.Health(r.Context()),
	}

	overall := types.HealthStateHealthy
	for _, c := range components {
		switch c.State {
		case types.HealthStateUnhealthy:
			overall = types.HealthStateUnhealthy
		case types.HealthStateDegraded:
			if overall == types.HealthStateHealthy {
				overall = types.HealthStateDegraded
			}
		}
	}

	status := http.StatusOK
	if overall == types.HealthStateUnhealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, healthResponse{State: overall, Components: components})
}

var errStreamingUnsupported = errors.New("response writer does not support streaming")
