package api

import (
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

// PlantPage is one page of the processing plant listing.
type PlantPage struct {
	Items    []*topology.ProcessingPlant `json:"items"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"pageSize"`
	Total    int                         `json:"total"`
}

// NodeView wraps a topology node with its kind so clients can decode it.
type NodeView struct {
	Kind topology.NodeKind `json:"kind"`
	Node topology.Node     `json:"node"`
}

// AcceptedResponse acknowledges a typed report.
type AcceptedResponse struct {
	Status       string `json:"status"`
	IndexedNodes *int   `json:"indexedNodes,omitempty"`
}
