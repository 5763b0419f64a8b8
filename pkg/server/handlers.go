package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirthikaaMK/drug-discovery/pkg/breaker"
	"github.com/kirthikaaMK/drug-discovery/pkg/job"
	"github.com/kirthikaaMK/drug-discovery/pkg/orchestrator"
	"github.com/kirthikaaMK/drug-discovery/pkg/report"
)

type analyzeRequest struct {
	Query        string   `json:"query"`
	AnalysisType string   `json:"analysis_type,omitempty"`
	Agents       []string `json:"agents,omitempty"`
}

type analyzeResponse struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	Query        string `json:"query"`
	AnalysisType string `json:"analysis_type"`
	Agents       int    `json:"agents"`
}

type statusResponse struct {
	JobID     string              `json:"job_id"`
	Status    job.Status          `json:"status"`
	Progress  float64             `json:"progress"`
	Tasks     map[string]taskView `json:"tasks"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type taskView struct {
	SubStatus   job.SubStatus `json:"sub_status"`
	Source      string        `json:"source,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps orchestration error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var oerr *orchestrator.Error
	if errors.As(err, &oerr) {
		status := http.StatusInternalServerError
		switch oerr.Code {
		case orchestrator.CodeInvalidQuery:
			status = http.StatusBadRequest
		case orchestrator.CodeNotFound:
			status = http.StatusNotFound
		case orchestrator.CodeNotReady:
			status = http.StatusConflict
		}
		writeJSON(w, status, errorResponse{Error: oerr.Message, Code: oerr.Code})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  orchestrator.CodeInvalidQuery,
		})
		return
	}

	j, err := s.engine.Submit(r.Context(), req.Query, req.AnalysisType, req.Agents)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, analyzeResponse{
		JobID:        j.ID,
		Status:       string(j.Status),
		Query:        j.Query,
		AnalysisType: j.AnalysisType,
		Agents:       len(j.Agents),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	j, err := s.engine.Status(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}

	tasks := make(map[string]taskView, len(j.Tasks))
	for name, t := range j.Tasks {
		tasks[name] = taskView{
			SubStatus:   t.SubStatus,
			Source:      string(t.Source),
			ErrorKind:   string(t.ErrorKind),
			ErrorDetail: t.ErrorDetail,
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		JobID:     j.ID,
		Status:    j.Status,
		Progress:  j.Progress(),
		Tasks:     tasks,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	rep, err := s.engine.Result(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleDownload streams the report as an xlsx workbook.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	rep, err := s.engine.Result(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="analysis_%s.xlsx"`, jobID))
	if err := report.WriteXLSX(rep, w); err != nil {
		s.logger.Error("Failed to write report workbook", "job_id", jobID, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	counts, err := s.engine.Store().CountByStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jobs := make(map[string]int, len(counts))
	for status, n := range counts {
		jobs[string(status)] = n
	}

	snaps := s.engine.Breakers().Snapshots()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Agent < snaps[j].Agent })

	overall := "ok"
	for _, snap := range snaps {
		if snap.State == breaker.StateOpen {
			overall = "degraded"
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   overall,
		"jobs":     jobs,
		"breakers": snaps,
	})
}

// handleConfig reports the effective configuration with secrets
// stripped.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	agents := make(map[string]any, len(s.cfg.Agents))
	for name, ac := range s.cfg.Agents {
		agents[name] = map[string]any{
			"timeout": time.Duration(ac.Timeout).String(),
			"use_api": ac.UseAPI,
			"api_url": ac.APIURL,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"server": map[string]any{
			"host": s.cfg.Server.Host,
			"port": s.cfg.Server.Port,
		},
		"storage": map[string]any{
			"backend": string(s.cfg.Storage.Backend),
		},
		"breaker": map[string]any{
			"failure_threshold": s.cfg.Breaker.FailureThreshold,
			"open_duration":     time.Duration(s.cfg.Breaker.OpenDuration).String(),
			"max_open_duration": time.Duration(s.cfg.Breaker.MaxOpenDuration).String(),
		},
		"orchestrator": map[string]any{
			"job_deadline":     time.Duration(s.cfg.Orchestrator.JobDeadline).String(),
			"max_query_length": s.cfg.Orchestrator.MaxQueryLength,
		},
		"retention": map[string]any{
			"ttl":      time.Duration(s.cfg.Retention.TTL).String(),
			"max_jobs": s.cfg.Retention.MaxJobs,
		},
		"agents": agents,
	})
}
