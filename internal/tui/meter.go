// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"bandstretch/internal/config"
	"bandstretch/internal/engine"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8A8A"))

	activeMarkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	levelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Bold(true)
)

// refreshInterval paces the meter redraw. 30 Hz is enough for bars and
// keeps the terminal cheap next to the audio callback.
const refreshInterval = 33 * time.Millisecond

// peakDecay is the per-frame multiplier applied to the held peak markers.
const peakDecay = 0.96

// EnergySource is the engine surface the meter polls. *engine.Engine
// satisfies it.
type EnergySource interface {
	BandEnergies() [config.NumBands]float64
	AudioLevel() float64
	ActiveBands() int
	BandActive(band int) bool
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// MeterModel is the Bubble Tea model for the live band-energy display.
type MeterModel struct {
	source   EnergySource
	bands    [config.NumBands]engine.Band
	energies [config.NumBands]float64
	peaks    [config.NumBands]float64
	level    float64
	active   int

	viewport viewport.Model
	ready    bool
}

// NewMeterModel creates a meter polling the given source.
func NewMeterModel(source EnergySource) MeterModel {
	return MeterModel{
		source: source,
		bands:  engine.Bands(),
	}
}

// Init starts the refresh ticker.
func (m MeterModel) Init() tea.Cmd {
	return tick()
}

// Update handles input and refresh ticks.
func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderBars())

	case tickMsg:
		m.energies = m.source.BandEnergies()
		m.level = m.source.AudioLevel()
		m.active = m.source.ActiveBands()
		for i := range m.peaks {
			m.peaks[i] *= peakDecay
			if m.energies[i] > m.peaks[i] {
				m.peaks[i] = m.energies[i]
			}
		}
		if m.ready {
			m.viewport.SetContent(m.renderBars())
		}
		cmds = append(cmds, tick())

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the UI.
func (m MeterModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render("Band Energy Meter")
	help := infoStyle.Render("q: Quit")

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderBars formats one row per band plus the master level line.
func (m MeterModel) renderBars() string {
	var sb strings.Builder

	// Label, active marker and a gap take 12 cells per row.
	barWidth := m.viewport.Width - 12
	if barWidth < 10 {
		barWidth = 10
	}

	for i := config.NumBands - 1; i >= 0; i-- {
		band := m.bands[i]

		mark := " "
		if m.source.BandActive(i) {
			mark = activeMarkStyle.Render("▶")
		}

		label := labelStyle.Render(fmt.Sprintf("%7s", formatHz(band.CenterHz())))
		bar := renderBar(m.energies[i], m.peaks[i], barWidth, band.DisplayColor)

		sb.WriteString(fmt.Sprintf("%s %s %s\n", mark, label, bar))
	}

	sb.WriteString("\n")
	sb.WriteString(levelStyle.Render(fmt.Sprintf("level %5.3f", m.level)))
	sb.WriteString(infoStyle.Render(fmt.Sprintf("   active bands %d/%d", m.active, config.NumBands)))

	return sb.String()
}

// renderBar draws a filled bar with a held peak marker behind it.
func renderBar(energy, peak float64, width int, color string) string {
	fill := int(energy * float64(width))
	if fill > width {
		fill = width
	}
	peakPos := int(peak * float64(width))
	if peakPos >= width {
		peakPos = width - 1
	}

	var sb strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < fill:
			sb.WriteString("█")
		case i == peakPos && peakPos >= fill:
			sb.WriteString("▌")
		default:
			sb.WriteString("·")
		}
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(sb.String())
}

// formatHz prints a band center compactly, switching to kHz above 1000.
func formatHz(hz float64) string {
	if hz >= 1000 {
		return fmt.Sprintf("%.1fkHz", hz/1000)
	}
	return fmt.Sprintf("%.0fHz", hz)
}

// StartMeterUI launches the Bubble Tea meter. It blocks until the user
// quits, so callers run it on the main goroutine after the stream starts.
func StartMeterUI(source EnergySource) error {
	p := tea.NewProgram(
		NewMeterModel(source),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
