package topology

import (
	"errors"
	"fmt"

	"github.com/rmax-ai/itops-collator/pkg/component"
)

// NodeKind identifies the level of a node in the ownership tree.
type NodeKind string

const (
	KindProcessingPlant   NodeKind = "processing_plant"
	KindWorkshop          NodeKind = "workshop"
	KindWorkUnitProcessor NodeKind = "work_unit_processor"
	KindEndpoint          NodeKind = "endpoint"
)

// Node is any vertex of the topology tree.
type Node interface {
	ComponentID() component.ID
	Kind() NodeKind
}

// NodeMeta carries the fields common to every monitored node.
type NodeMeta struct {
	ID              component.ID `json:"componentID"`
	Name            string       `json:"name"`
	Version         string       `json:"version,omitempty"`
	ConcurrencyMode string       `json:"concurrencyMode,omitempty"`
	ResilienceMode  string       `json:"resilienceMode,omitempty"`
}

// ComponentID returns the node's id.
func (m NodeMeta) ComponentID() component.ID {
	return m.ID
}

// Endpoint is a leaf of the tree, owned by a work unit processor.
type Endpoint struct {
	NodeMeta
	EndpointType string `json:"endpointType,omitempty"`
	HostDNSName  string `json:"hostDNSName,omitempty"`
	Port         int    `json:"port,omitempty"`
	Encrypted    bool   `json:"encrypted,omitempty"`
}

func (e *Endpoint) Kind() NodeKind { return KindEndpoint }

// WorkUnitProcessor owns zero or more endpoints.
type WorkUnitProcessor struct {
	NodeMeta
	Endpoints map[component.ID]*Endpoint `json:"endpoints"`
}

func (w *WorkUnitProcessor) Kind() NodeKind { return KindWorkUnitProcessor }

// AddEndpoint attaches e, replacing any endpoint with the same id.
func (w *WorkUnitProcessor) AddEndpoint(e *Endpoint) {
	if w.Endpoints == nil {
		w.Endpoints = make(map[component.ID]*Endpoint)
	}
	w.Endpoints[e.ID] = e
}

// Workshop owns zero or more work unit processors.
type Workshop struct {
	NodeMeta
	WorkUnitProcessors map[component.ID]*WorkUnitProcessor `json:"workUnitProcessors"`
}

func (w *Workshop) Kind() NodeKind { return KindWorkshop }

// AddWorkUnitProcessor attaches wup, replacing any WUP with the same id.
func (w *Workshop) AddWorkUnitProcessor(wup *WorkUnitProcessor) {
	if w.WorkUnitProcessors == nil {
		w.WorkUnitProcessors = make(map[component.ID]*WorkUnitProcessor)
	}
	w.WorkUnitProcessors[wup.ID] = wup
}

// ProcessingPlant is the root of one deployed component's subtree.
type ProcessingPlant struct {
	NodeMeta
	Site         string                     `json:"site,omitempty"`
	PlatformID   string                     `json:"platformID,omitempty"`
	SecurityZone string                     `json:"securityZone,omitempty"`
	ActualHostIP string                     `json:"actualHostIP,omitempty"`
	ActualPodIP  string                     `json:"actualPodIP,omitempty"`
	Workshops    map[component.ID]*Workshop `json:"workshops"`
}

func (p *ProcessingPlant) Kind() NodeKind { return KindProcessingPlant }

// AddWorkshop attaches ws, replacing any workshop with the same id.
func (p *ProcessingPlant) AddWorkshop(ws *Workshop) {
	if p.Workshops == nil {
		p.Workshops = make(map[component.ID]*Workshop)
	}
	p.Workshops[ws.ID] = ws
}

// NodeCount returns the number of nodes in the subtree, the plant included.
// Nil children are not counted.
func (p *ProcessingPlant) NodeCount() int {
	n := 0
	p.walk(func(Node) { n++ })
	return n
}

// Validate checks that every node of the subtree is present, carries a
// component id and is keyed under that id by its parent.
func (p *ProcessingPlant) Validate() error {
	if p == nil {
		return errors.New("processing plant is null")
	}
	if p.ID.IsEmpty() {
		return errors.New("processing plant without component id")
	}
	for key, ws := range p.Workshops {
		if ws == nil {
			return fmt.Errorf("plant %s: workshop %q is null", p.ID, key)
		}
		if err := checkKey(KindWorkshop, key, ws.ID); err != nil {
			return fmt.Errorf("plant %s: %w", p.ID, err)
		}
		for key, wup := range ws.WorkUnitProcessors {
			if wup == nil {
				return fmt.Errorf("workshop %s: work unit processor %q is null", ws.ID, key)
			}
			if err := checkKey(KindWorkUnitProcessor, key, wup.ID); err != nil {
				return fmt.Errorf("workshop %s: %w", ws.ID, err)
			}
			for key, ep := range wup.Endpoints {
				if ep == nil {
					return fmt.Errorf("work unit processor %s: endpoint %q is null", wup.ID, key)
				}
				if err := checkKey(KindEndpoint, key, ep.ID); err != nil {
					return fmt.Errorf("work unit processor %s: %w", wup.ID, err)
				}
			}
		}
	}
	return nil
}

func checkKey(kind NodeKind, key, id component.ID) error {
	if id.IsEmpty() {
		return fmt.Errorf("%s %q without component id", kind, key)
	}
	if id != key {
		return fmt.Errorf("%s keyed %q carries component id %q", kind, key, id)
	}
	return nil
}

// walk visits the plant and its descendants, skipping nil children.
func (p *ProcessingPlant) walk(visit func(Node)) {
	visit(p)
	for _, ws := range p.Workshops {
		if ws == nil {
			continue
		}
		visit(ws)
		for _, wup := range ws.WorkUnitProcessors {
			if wup == nil {
				continue
			}
			visit(wup)
			for _, ep := range wup.Endpoints {
				if ep != nil {
					visit(ep)
				}
			}
		}
	}
}

// Graph is the root container of the deployment topology.
type Graph struct {
	DeploymentName   string                            `json:"deploymentName,omitempty"`
	ProcessingPlants map[component.ID]*ProcessingPlant `json:"processingPlants"`
}

// NewGraph creates an empty topology graph.
func NewGraph() *Graph {
	return &Graph{
		ProcessingPlants: make(map[component.ID]*ProcessingPlant),
	}
}

// AddProcessingPlant inserts or replaces the plant keyed by its id.
func (g *Graph) AddProcessingPlant(p *ProcessingPlant) {
	g.ProcessingPlants[p.ID] = p
}

// RemoveProcessingPlant drops the plant and its subtree.
func (g *Graph) RemoveProcessingPlant(id component.ID) {
	delete(g.ProcessingPlants, id)
}

// Walk visits every node depth-first: plant, workshop, WUP, endpoint. Nil
// nodes are skipped.
func (g *Graph) Walk(visit func(Node)) {
	for _, plant := range g.ProcessingPlants {
		if plant != nil {
			plant.walk(visit)
		}
	}
}
