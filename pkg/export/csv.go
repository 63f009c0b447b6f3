package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	"github.com/rmax-ai/itops-collator/pkg/topology"
)

// table buffers a CSV document.
type table struct {
	buf    *bytes.Buffer
	writer *csv.Writer
}

func newTable(headers ...string) (*table, error) {
	t := &table{buf: &bytes.Buffer{}}
	t.writer = csv.NewWriter(t.buf)
	if err := t.writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	return t, nil
}

func (t *table) row(fields ...string) error {
	if err := t.writer.Write(fields); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

func (t *table) finish() (*bytes.Buffer, error) {
	t.writer.Flush()
	if err := t.writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}
	return t.buf, nil
}

func portString(p int) string {
	if p == 0 {
		return ""
	}
	return strconv.Itoa(p)
}

func sortedPlants(l PlantLister) []*topology.ProcessingPlant {
	plants := l.ListProcessingPlants()
	sort.Slice(plants, func(i, j int) bool { return plants[i].ID < plants[j].ID })
	return plants
}

func sortedWorkshops(p *topology.ProcessingPlant) []*topology.Workshop {
	out := make([]*topology.Workshop, 0, len(p.Workshops))
	for _, ws := range p.Workshops {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedWUPs(ws *topology.Workshop) []*topology.WorkUnitProcessor {
	out := make([]*topology.WorkUnitProcessor, 0, len(ws.WorkUnitProcessors))
	for _, wup := range ws.WorkUnitProcessors {
		out = append(out, wup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedEndpoints(wup *topology.WorkUnitProcessor) []*topology.Endpoint {
	out := make([]*topology.Endpoint, 0, len(wup.Endpoints))
	for _, ep := range wup.Endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
