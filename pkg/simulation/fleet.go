package simulation

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/rmax-ai/itops-collator/pkg/client"
	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/metrics"
	"github.com/rmax-ai/itops-collator/pkg/pubsub"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

var sites = []string{"site-a", "site-b", "site-c"}

func plantID(p int) component.ID {
	return component.ID(fmt.Sprintf("plant-%02d", p))
}

func wupID(p, w, u int) component.ID {
	return component.ID(fmt.Sprintf("plant-%02d.ws%d.wup%d", p, w, u))
}

// buildPlant returns the full subtree for plant p. The shape is a pure
// function of the fleet so repeated reports are idempotent.
func (f Fleet) buildPlant(p int) *topology.ProcessingPlant {
	id := plantID(p)
	plant := &topology.ProcessingPlant{
		NodeMeta:     topology.NodeMeta{ID: id, Name: fmt.Sprintf("Plant %02d", p), Version: "1.0.0"},
		Site:         sites[p%len(sites)],
		SecurityZone: "internal",
		ActualPodIP:  fmt.Sprintf("10.0.%d.%d", p/250, p%250+1),
	}
	for w := 0; w < f.WorkshopsPerPlant; w++ {
		wsID := component.ID(fmt.Sprintf("%s.ws%d", id, w))
		ws := &topology.Workshop{NodeMeta: topology.NodeMeta{ID: wsID, Name: fmt.Sprintf("workshop-%d", w)}}
		for u := 0; u < f.WUPsPerWorkshop; u++ {
			wup := &topology.WorkUnitProcessor{NodeMeta: topology.NodeMeta{
				ID:              wupID(p, w, u),
				Name:            fmt.Sprintf("wup-%d", u),
				ConcurrencyMode: "concurrent",
				ResilienceMode:  "standalone",
			}}
			for e := 0; e < f.EndpointsPerWUP; e++ {
				wup.AddEndpoint(&topology.Endpoint{
					NodeMeta:     topology.NodeMeta{ID: component.ID(fmt.Sprintf("%s.ep%d", wup.ID, e)), Name: fmt.Sprintf("ep-%d", e)},
					EndpointType: "http",
					HostDNSName:  fmt.Sprintf("%s.svc.local", id),
					Port:         10000 + w*100 + u*10 + e,
				})
			}
			ws.AddWorkUnitProcessor(wup)
		}
		plant.AddWorkshop(ws)
	}
	return plant
}

func (f Fleet) randomWUP(rng *rand.Rand) (component.ID, bool) {
	if f.Plants == 0 || f.WorkshopsPerPlant == 0 || f.WUPsPerWorkshop == 0 {
		return "", false
	}
	return wupID(rng.Intn(f.Plants), rng.Intn(f.WorkshopsPerPlant), rng.Intn(f.WUPsPerWorkshop)), true
}

func metricsReport(id component.ID, seq uint64, now time.Time) *metrics.Snapshot {
	count := strconv.FormatUint(seq, 10)
	return &metrics.Snapshot{
		ComponentID:   id,
		ComponentType: "WorkUnitProcessor",
		Timestamp:     now,
		Metrics: []metrics.Metric{
			{Name: "ingres.count", Value: count, Type: "counter", Timestamp: now},
			{Name: "egress.count", Value: count, Type: "counter", Timestamp: now},
			{Name: "last.activity", Value: now.Format(time.RFC3339), Type: "timestamp", Timestamp: now},
		},
	}
}

// pubsubReport describes plant p publishing one topic to a random peer.
func (f Fleet) pubsubReport(rng *rand.Rand, p int, now time.Time) *client.PubSubReport {
	publisher := plantID(p)
	subscriber := plantID(rng.Intn(f.Plants))
	sub := pubsub.Subscription{
		Publisher:       publisher,
		Subscriber:      subscriber,
		Topic:           fmt.Sprintf("topic-%d", rng.Intn(8)),
		Status:          "active",
		EventsForwarded: rng.Int63n(100000),
	}

	report := &client.PubSubReport{
		ProcessingPlantSummaries: map[component.ID]*pubsub.ProcessingPlantSubscriptionSummary{
			publisher: {ComponentID: publisher, Timestamp: now, AsPublisher: []pubsub.Subscription{sub}},
		},
	}
	if wup, ok := f.randomWUP(rng); ok {
		report.WorkUnitProcessorSummaries = map[component.ID]*pubsub.WorkUnitProcessorSubscriptionSummary{
			wup: {Subscriber: wup, Timestamp: now, Subscriptions: []pubsub.Subscription{sub}},
		}
	}
	return report
}
