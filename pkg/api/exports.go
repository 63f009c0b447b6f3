package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/export"
)

// handleExport streams a CSV export. Query params: componentID, from, to
// (RFC3339) and limit.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind := export.Kind(r.PathValue("kind"))
	gen, err := export.NewGenerator(kind, s.collator)
	switch {
	case errors.Is(err, export.ErrUnknownKind):
		writeError(w, http.StatusBadRequest, "unknown_export", string(kind))
		return
	case errors.Is(err, export.ErrJournalDisabled):
		writeError(w, http.StatusServiceUnavailable, "audit_journal_disabled", "")
		return
	case err != nil:
		s.logger.Error("failed to create export", zapTrace(r), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error", "")
		return
	}

	q := r.URL.Query()
	params := export.Params{ComponentID: component.ID(q.Get("componentID"))}
	if params.Start, err = timeParam(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
		return
	}
	if params.End, err = timeParam(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
		return
	}
	if params.Limit, err = intParam(q.Get("limit"), 0); err != nil || params.Limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid_limit", "")
		return
	}

	out, err := gen.Generate(r.Context(), params)
	if err != nil {
		s.logger.Error("export failed", zapTrace(r), zap.String("kind", string(kind)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error", "")
		return
	}

	filename := fmt.Sprintf("itops-%s-%s.csv", kind, time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, out); err != nil {
		s.logger.Warn("failed to write export", zapTrace(r), zap.Error(err))
	}
}

func timeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
