package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/store"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

const (
	defaultPageSize   = 100
	maxPageSize       = 1000
	defaultAuditLimit = 5
	maxAuditLimit     = 500
)

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.collator.Topology.Graph())
}

// handleListProcessingPlants sorts and pages the plant listing. page is
// 1-based; sortBy is componentID (default), name or site.
func (s *Server) handleListProcessingPlants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	pageSize, err := intParam(q.Get("pageSize"), defaultPageSize)
	if err != nil || pageSize < 1 {
		writeError(w, http.StatusBadRequest, "invalid_page_size", "")
		return
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page, err := intParam(q.Get("page"), 1)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "invalid_page", "")
		return
	}

	less, ok := plantOrder(q.Get("sortBy"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_sort_by", "expected componentID, name or site")
		return
	}
	desc := false
	switch strings.ToLower(q.Get("sortOrder")) {
	case "", "asc", "ascending":
	case "desc", "descending":
		desc = true
	default:
		writeError(w, http.StatusBadRequest, "invalid_sort_order", "expected asc or desc")
		return
	}

	plants := s.collator.Topology.ListProcessingPlants()
	sort.SliceStable(plants, func(i, j int) bool {
		if desc {
			return less(plants[j], plants[i])
		}
		return less(plants[i], plants[j])
	})

	total := len(plants)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	s.writeJSON(w, r, http.StatusOK, PlantPage{
		Items:    plants[start:end],
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

func plantOrder(sortBy string) (func(a, b *topology.ProcessingPlant) bool, bool) {
	byID := func(a, b *topology.ProcessingPlant) bool { return a.ID < b.ID }
	switch strings.ToLower(sortBy) {
	case "", "componentid", "id":
		return byID, true
	case "name":
		return func(a, b *topology.ProcessingPlant) bool {
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return byID(a, b)
		}, true
	case "site":
		return func(a, b *topology.ProcessingPlant) bool {
			if a.Site != b.Site {
				return a.Site < b.Site
			}
			return byID(a, b)
		}, true
	}
	return nil, false
}

func (s *Server) handleGetProcessingPlant(w http.ResponseWriter, r *http.Request) {
	plant, ok := s.collator.Topology.GetProcessingPlant(component.ID(r.PathValue("id")))
	if !ok {
		writeError(w, http.StatusNotFound, "processing_plant_not_found", "")
		return
	}
	s.writeJSON(w, r, http.StatusOK, plant)
}

func (s *Server) handleListWorkshops(w http.ResponseWriter, r *http.Request) {
	plant, ok := s.collator.Topology.GetProcessingPlant(component.ID(r.PathValue("id")))
	if !ok {
		writeError(w, http.StatusNotFound, "processing_plant_not_found", "")
		return
	}

	workshops := make([]*topology.Workshop, 0, len(plant.Workshops))
	for _, ws := range plant.Workshops {
		workshops = append(workshops, ws)
	}
	sort.Slice(workshops, func(i, j int) bool { return workshops[i].ID < workshops[j].ID })

	s.writeJSON(w, r, http.StatusOK, workshops)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	node, ok := s.collator.Topology.GetNode(component.ID(r.PathValue("id")))
	if !ok {
		writeError(w, http.StatusNotFound, "node_not_found", "")
		return
	}
	s.writeJSON(w, r, http.StatusOK, NodeView{Kind: node.Kind(), Node: node})
}

// handleMetrics serves the display copy of the current snapshot, or the
// previous generation with ?generation=previous.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	id := component.ID(r.PathValue("id"))

	switch r.URL.Query().Get("generation") {
	case "", "current":
		snapshot, ok := s.collator.Metrics.GetMetricsForDisplay(id)
		if !ok {
			writeError(w, http.StatusNotFound, "metrics_not_found", "")
			return
		}
		s.writeJSON(w, r, http.StatusOK, snapshot)
	case "previous":
		snapshot, ok := s.collator.Metrics.GetPreviousMetricsSet(id)
		if !ok {
			writeError(w, http.StatusNotFound, "metrics_not_found", "")
			return
		}
		s.writeJSON(w, r, http.StatusOK, snapshot)
	default:
		writeError(w, http.StatusBadRequest, "invalid_generation", "expected current or previous")
	}
}

func (s *Server) handleProcessingPlantPubSub(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.collator.Subscriptions.GetProcessingPlantSummary(component.ID(r.PathValue("id")))
	if !ok {
		writeError(w, http.StatusNotFound, "pubsub_summary_not_found", "")
		return
	}
	s.writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleWorkUnitProcessorPubSub(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.collator.Subscriptions.GetWorkUnitProcessorSummary(component.ID(r.PathValue("id")))
	if !ok {
		writeError(w, http.StatusNotFound, "pubsub_summary_not_found", "")
		return
	}
	s.writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	if s.collator.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "audit_journal_disabled", "")
		return
	}

	limit, err := intParam(r.URL.Query().Get("limit"), defaultAuditLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "invalid_limit", "")
		return
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	events, err := s.collator.Journal.QueryEvents(r.Context(), store.EventFilter{
		ComponentID: r.PathValue("id"),
		Limit:       limit,
	})
	if err != nil {
		s.logger.Error("failed to query audit events", zapTrace(r), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error", "")
		return
	}
	s.writeJSON(w, r, http.StatusOK, events)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
