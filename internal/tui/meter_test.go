// SPDX-License-Identifier: MIT
package tui

import (
	"strings"
	"testing"
	"time"

	"bandstretch/internal/config"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeSource struct {
	energies [config.NumBands]float64
	level    float64
	active   map[int]bool
}

func (f *fakeSource) BandEnergies() [config.NumBands]float64 { return f.energies }
func (f *fakeSource) AudioLevel() float64                    { return f.level }
func (f *fakeSource) ActiveBands() int                       { return len(f.active) }
func (f *fakeSource) BandActive(band int) bool               { return f.active[band] }

func newTestModel(t *testing.T, src *fakeSource) MeterModel {
	t.Helper()

	m := NewMeterModel(src)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return updated.(MeterModel)
}

func TestMeterRendersAllBands(t *testing.T) {
	src := &fakeSource{level: 0.25, active: map[int]bool{3: true}}
	for i := range src.energies {
		src.energies[i] = float64(i) / config.NumBands
	}

	m := newTestModel(t, src)
	updated, _ := m.Update(tickMsg(time.Now()))
	m = updated.(MeterModel)

	content := m.renderBars()
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")

	// 24 band rows, a blank spacer, and the level line.
	if len(lines) != config.NumBands+2 {
		t.Fatalf("expected %d lines, got %d", config.NumBands+2, len(lines))
	}
	if !strings.Contains(content, "level 0.250") {
		t.Errorf("level line missing: %q", lines[len(lines)-1])
	}
	if !strings.Contains(content, "active bands 1/24") {
		t.Errorf("active band count missing")
	}
}

func TestMeterPeakHoldDecays(t *testing.T) {
	src := &fakeSource{}
	src.energies[0] = 1.0

	m := newTestModel(t, src)
	updated, _ := m.Update(tickMsg(time.Now()))
	m = updated.(MeterModel)

	if m.peaks[0] != 1.0 {
		t.Fatalf("peak should latch the energy, got %v", m.peaks[0])
	}

	src.energies[0] = 0
	for i := 0; i < 10; i++ {
		updated, _ = m.Update(tickMsg(time.Now()))
		m = updated.(MeterModel)
	}

	if m.peaks[0] >= 1.0 {
		t.Errorf("peak should decay once the energy drops, got %v", m.peaks[0])
	}
	if m.peaks[0] <= 0 {
		t.Errorf("peak should decay gradually, not collapse to zero")
	}
}

func TestMeterQuitsOnQ(t *testing.T) {
	m := newTestModel(t, &fakeSource{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected tea.Quit, got %T", cmd())
	}
}

func TestFormatHz(t *testing.T) {
	cases := []struct {
		hz   float64
		want string
	}{
		{24.0, "24Hz"},
		{440, "440Hz"},
		{1549.2, "1.5kHz"},
		{13416, "13.4kHz"},
	}
	for _, tc := range cases {
		if got := formatHz(tc.hz); got != tc.want {
			t.Errorf("formatHz(%v) = %q, want %q", tc.hz, got, tc.want)
		}
	}
}
