package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/ingest"
	"github.com/rmax-ai/itops-collator/pkg/metrics"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

// handleReport accepts the capability envelope. The response body is always
// a ReportResponse; unsuccessful reports use 400.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req ingest.ReportRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp := s.gateway.Handle(r.Context(), &req)
	status := http.StatusOK
	if !resp.Successful {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, r, status, resp)
}

func (s *Server) handleMetricsReport(w http.ResponseWriter, r *http.Request) {
	var snapshot metrics.Snapshot
	if !s.decodeBody(w, r, &snapshot) {
		return
	}
	if err := s.gateway.ReportMetrics(r.Context(), &snapshot); err != nil {
		s.writeReportError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}

func (s *Server) handleTopologyReport(w http.ResponseWriter, r *http.Request) {
	var graph topology.Graph
	if !s.decodeBody(w, r, &graph) {
		return
	}
	n, err := s.gateway.ReportTopology(r.Context(), &graph)
	if err != nil {
		s.writeReportError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusAccepted, AcceptedResponse{Status: "accepted", IndexedNodes: &n})
}

func (s *Server) handlePubSubReport(w http.ResponseWriter, r *http.Request) {
	var report ingest.PubSubReport
	if !s.decodeBody(w, r, &report) {
		return
	}
	if err := s.gateway.ReportPubSub(r.Context(), &report); err != nil {
		s.writeReportError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}

func (s *Server) handleRemoveProcessingPlant(w http.ResponseWriter, r *http.Request) {
	id := component.ID(r.PathValue("id"))
	n, err := s.gateway.RemoveProcessingPlant(r.Context(), id)
	if errors.Is(err, ingest.ErrUnknownPlant) {
		writeError(w, http.StatusNotFound, "processing_plant_not_found", "")
		return
	}
	if err != nil {
		s.writeReportError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, AcceptedResponse{Status: "removed", IndexedNodes: &n})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json_body", "")
		return false
	}
	return true
}

func (s *Server) writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ingest.ErrInvalidReport):
		writeError(w, http.StatusBadRequest, "invalid_report", err.Error())
	case errors.Is(err, ingest.ErrUnsupportedCapability):
		writeError(w, http.StatusBadRequest, "unsupported_capability", err.Error())
	default:
		s.logger.Error("report failed", zapTrace(r), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error", "")
	}
}

func zapTrace(r *http.Request) zap.Field {
	return zap.String("trace_id", getTraceID(r.Context()))
}
