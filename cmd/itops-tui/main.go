package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/itops-collator/pkg/client"
	"github.com/rmax-ai/itops-collator/pkg/pubsub"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

// Config
const (
	defaultEndpoint = "http://localhost:8090"
	pollRate        = time.Second
	fetchTimeout    = 800 * time.Millisecond
	maxPlants       = 50
	viewportHeight  = 18
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	workshopStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")) // Blue
	wupStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("99")) // Purple
	endpointStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	topicStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // Green
)

type tickMsg time.Time

type dataMsg struct {
	health client.Health
	plants []*topology.ProcessingPlant
	err    error
}

type pubsubMsg struct {
	summary *pubsub.ProcessingPlantSubscriptionSummary
}

type model struct {
	api      *client.Client
	spinner  spinner.Model
	viewport viewport.Model

	health   client.Health
	plants   []*topology.ProcessingPlant
	cursor   int
	selected *pubsub.ProcessingPlantSubscriptionSummary
	err      error
	ready    bool
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func initialModel(api *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:      api,
		spinner:  s,
		viewport: newViewport(100),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.selected = nil
				m.updateViewportContent()
				return m, fetchPubSub(m.api, m.selectedPlant())
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.plants)-1 {
				m.cursor++
				m.selected = nil
				m.updateViewportContent()
				return m, fetchPubSub(m.api, m.selectedPlant())
			}
			return m, nil
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api), fetchPubSub(m.api, m.selectedPlant()), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.health = msg.health
			m.plants = msg.plants
			if m.cursor >= len(m.plants) {
				m.cursor = max(len(m.plants)-1, 0)
			}
			m.updateViewportContent()
		}
		m.ready = true

	case pubsubMsg:
		if p := m.selectedPlant(); p != nil && msg.summary != nil && msg.summary.ComponentID == p.ID {
			m.selected = msg.summary
			m.updateViewportContent()
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.ready = true
	}

	return m, tea.Batch(cmds...)
}

func (m model) selectedPlant() *topology.ProcessingPlant {
	if m.cursor < 0 || m.cursor >= len(m.plants) {
		return nil
	}
	return m.plants[m.cursor]
}

// updateViewportContent renders the selected plant's subtree and its
// subscriptions.
func (m *model) updateViewportContent() {
	p := m.selectedPlant()
	if p == nil {
		m.viewport.SetContent(subtleStyle.Render("No processing plants reported."))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  site=%s zone=%s pod=%s\n",
		selectedStyle.Render(p.Name), orDash(p.Site), orDash(p.SecurityZone), orDash(p.ActualPodIP))

	for _, ws := range sortedWorkshops(p) {
		fmt.Fprintf(&sb, "  %s\n", workshopStyle.Render(fmt.Sprintf("workshop %s (%s)", ws.Name, ws.ID)))
		for _, wup := range sortedWUPs(ws) {
			fmt.Fprintf(&sb, "    %s\n", wupStyle.Render(fmt.Sprintf("wup %s (%s)", wup.Name, wup.ID)))
			for _, ep := range sortedEndpoints(wup) {
				fmt.Fprintf(&sb, "      %s\n", endpointStyle.Render(fmt.Sprintf("%s %s:%d", ep.EndpointType, ep.HostDNSName, ep.Port)))
			}
		}
	}

	if m.selected != nil {
		sb.WriteString("\n")
		for _, s := range m.selected.AsPublisher {
			fmt.Fprintf(&sb, "  publishes %s to %s\n", topicStyle.Render(s.Topic), s.Subscriber)
		}
		for _, s := range m.selected.AsSubscriber {
			fmt.Fprintf(&sb, "  subscribes %s from %s\n", topicStyle.Render(s.Topic), s.Publisher)
		}
	}

	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	var list strings.Builder
	list.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Processing Plants") + "\n\n")
	if len(m.plants) == 0 {
		list.WriteString(subtleStyle.Render("No processing plants reported."))
	}
	for i, p := range m.plants {
		line := fmt.Sprintf("%s (%s) • %d nodes", p.Name, p.ID, p.NodeCount())
		if i == m.cursor {
			list.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			list.WriteString("  " + line + "\n")
		}
	}
	topPane := paneStyle.Render(list.String())

	header := headerStyle.Render(fmt.Sprintf("%s Topology", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		c := m.health.Collator
		status = okStyle.Render(fmt.Sprintf("Online • %d Plants • %d Nodes • %d Metric Sources • %d Subscriptions",
			c.ProcessingPlants, c.IndexedNodes, c.MetricsComponents, c.PlantSummaries+c.WorkUnitSummaries))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nj/k select • pgup/pgdn scroll • q quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, m.viewport.View(), footer)
}

// Commands

func fetchData(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		health, err := api.Ping(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		page, err := api.ListProcessingPlants(ctx, client.ListOptions{PageSize: maxPlants, SortBy: "name"})
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{health: health, plants: page.Items}
	}
}

func fetchPubSub(api *client.Client, p *topology.ProcessingPlant) tea.Cmd {
	if p == nil {
		return nil
	}
	id := p.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		summary, err := api.GetProcessingPlantPubSub(ctx, id)
		if err != nil {
			return nil
		}
		return pubsubMsg{summary: summary}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
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

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func main() {
	endpoint := flag.String("endpoint", envOrDefault("ITOPS_ENDPOINT", defaultEndpoint), "collator base URL")
	flag.Parse()

	api := client.NewClient(*endpoint, client.WithMaxRetries(0))
	p := tea.NewProgram(initialModel(api), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
