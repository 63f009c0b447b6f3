package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/itops-collator/pkg/client"
	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/pubsub"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

func plant(id, name string) *topology.ProcessingPlant {
	p := &topology.ProcessingPlant{NodeMeta: topology.NodeMeta{ID: component.ID(id), Name: name}, Site: "site-a"}
	ws := &topology.Workshop{NodeMeta: topology.NodeMeta{ID: component.ID(id + ".ws"), Name: "edge"}}
	wup := &topology.WorkUnitProcessor{NodeMeta: topology.NodeMeta{ID: component.ID(id + ".ws.wup"), Name: "receiver"}}
	wup.AddEndpoint(&topology.Endpoint{NodeMeta: topology.NodeMeta{ID: component.ID(id + ".ws.wup.ep")}, EndpointType: "http", HostDNSName: "edge.local", Port: 8443})
	ws.AddWorkUnitProcessor(wup)
	p.AddWorkshop(ws)
	return p
}

func loaded(t *testing.T) model {
	t.Helper()
	m := initialModel(client.NewClient("http://127.0.0.1:0"))
	next, _ := m.Update(dataMsg{plants: []*topology.ProcessingPlant{plant("p1", "alpha"), plant("p2", "beta")}})
	return next.(model)
}

func TestModel_RendersPlants(t *testing.T) {
	m := loaded(t)
	require.True(t, m.ready)

	view := m.View()
	assert.Contains(t, view, "alpha (p1) • 4 nodes")
	assert.Contains(t, view, "beta (p2)")
	assert.Contains(t, m.viewport.View(), "wup receiver (p1.ws.wup)")
	assert.Contains(t, m.viewport.View(), "http edge.local:8443")
}

func TestModel_CursorMovesAndClamps(t *testing.T) {
	m := loaded(t)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = next.(model)
	assert.Equal(t, 1, m.cursor)
	assert.NotNil(t, cmd, "moving the cursor fetches the plant's subscriptions")
	assert.Contains(t, m.viewport.View(), "p2.ws.wup")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = next.(model)
	assert.Equal(t, 1, m.cursor)

	// A shorter listing pulls the cursor back in range.
	next, _ = m.Update(dataMsg{plants: []*topology.ProcessingPlant{plant("p1", "alpha")}})
	m = next.(model)
	assert.Equal(t, 0, m.cursor)
}

func TestModel_PubSubOnlyForSelectedPlant(t *testing.T) {
	m := loaded(t)

	next, _ := m.Update(pubsubMsg{summary: &pubsub.ProcessingPlantSubscriptionSummary{
		ComponentID: "p2",
		AsPublisher: []pubsub.Subscription{{Publisher: "p2", Subscriber: "p9", Topic: "stale"}},
	}})
	m = next.(model)
	assert.Nil(t, m.selected)

	next, _ = m.Update(pubsubMsg{summary: &pubsub.ProcessingPlantSubscriptionSummary{
		ComponentID: "p1",
		AsPublisher: []pubsub.Subscription{{Publisher: "p1", Subscriber: "p3", Topic: "adt.a01"}},
	}})
	m = next.(model)
	require.NotNil(t, m.selected)
	assert.Contains(t, m.viewport.View(), "publishes")
	assert.Contains(t, m.viewport.View(), "adt.a01")
}

func TestModel_OfflineStatus(t *testing.T) {
	m := loaded(t)
	next, _ := m.Update(dataMsg{err: assert.AnError})
	m = next.(model)

	assert.True(t, strings.Contains(m.View(), "Offline"))
	assert.Len(t, m.plants, 2, "last good listing is kept")
}

func TestModel_Quit(t *testing.T) {
	m := loaded(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
