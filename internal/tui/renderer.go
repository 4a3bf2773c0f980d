package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/agalue/shifter/internal/playback"
	"github.com/agalue/shifter/internal/ring"
)

const (
	clearScreen = "\x1b[H\x1b[2J"
	meterWidth  = 40
)

var (
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	liveStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	shiftStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	meterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// Renderer draws a Snapshot to an io.Writer (normally stdout) as a styled
// status line, peak meters, and an optional help overlay.
type Renderer struct {
	out      io.Writer
	showHelp bool
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// ToggleHelp flips whether the help overlay is drawn.
func (r *Renderer) ToggleHelp() { r.showHelp = !r.showHelp }

// Render draws one frame for the given snapshot and device metadata.
func (r *Renderer) Render(snap playback.Snapshot, dev playback.DeviceInfo) {
	var b strings.Builder
	b.WriteString(clearScreen)

	b.WriteString(labelStyle.Render("shifter"))
	b.WriteString("  ")
	b.WriteString(stateLabel(snap.State))
	b.WriteString("\n")

	b.WriteString(dimStyle.Render(fmt.Sprintf("in:  %s", dev.InputName)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("out: %s (%d Hz, %d ch)", dev.OutputName, dev.SampleRate, dev.Channels)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("delay:  %8.0f ms   step: %-5s   volume: %3.0f%%\n",
		snap.TargetDelayMs, snap.StepLabel, snap.Volume/1.5*100))
	b.WriteString(fmt.Sprintf("buffer: %5.1f%% full\n\n", snap.BufferFillPercent))

	b.WriteString(meterLine("L", snap.PeakLeft, snap.PeakLeftDBFS))
	b.WriteString("\n")
	b.WriteString(meterLine("R", snap.PeakRight, snap.PeakRightDBFS))
	b.WriteString("\n")

	if snap.LastCallbackStatus != ring.Ok {
		b.WriteString(warnStyle.Render(fmt.Sprintf("last callback: %s", snap.LastCallbackStatus)))
		b.WriteString("\n")
	}

	if r.showHelp {
		b.WriteString("\n")
		b.WriteString(helpText())
	} else {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("press h for help, q to quit"))
		b.WriteString("\n")
	}

	fmt.Fprint(r.out, b.String())
}

func stateLabel(s playback.State) string {
	switch s {
	case playback.Live:
		return liveStyle.Render("LIVE")
	case playback.Paused:
		return pausedStyle.Render("PAUSED")
	case playback.TimeShifted:
		return shiftStyle.Render("TIME-SHIFTED")
	default:
		return s.String()
	}
}

func meterLine(label string, linear, dbfs float64) string {
	filled := int(linear * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := meterStyle.Render(strings.Repeat("#", filled)) + strings.Repeat(".", meterWidth-filled)
	return fmt.Sprintf("%s [%s] %6.1f dBFS", label, bar, dbfs)
}

func helpText() string {
	lines := []string{
		"space        toggle pause",
		"-> / <-      seek backward / forward in time",
		"up / down    volume up / down",
		"1-9          set seek step (1ms .. 30s)",
		"l            jump to live",
		"h            toggle this help",
		"q            quit",
	}
	return helpStyle.Render(strings.Join(lines, "\n"))
}
