package tui

import (
	"testing"

	"github.com/agalue/shifter/internal/playback"
	"github.com/agalue/shifter/internal/ring"
)

func newTestController() *playback.Controller {
	buf := ring.New(48000*10, 480)
	dev := playback.DeviceInfo{InputName: "BlackHole 2ch", OutputName: "MacBook Pro Speakers", SampleRate: 48000, Channels: 2}
	return playback.New(buf, dev, uint64(48000*2*60), 0)
}

func TestDispatchSeekAndPause(t *testing.T) {
	ctrl := newTestController()

	Dispatch(Event{Kind: KeySeekBackward}, ctrl, nil)
	if ctrl.CurrentState() != playback.TimeShifted {
		t.Fatalf("expected TimeShifted after seek_backward dispatch, got %v", ctrl.CurrentState())
	}

	Dispatch(Event{Kind: KeyTogglePause}, ctrl, nil)
	if ctrl.CurrentState() != playback.Paused {
		t.Fatalf("expected Paused after toggle dispatch, got %v", ctrl.CurrentState())
	}
}

func TestDispatchQuitReturnsTrue(t *testing.T) {
	ctrl := newTestController()
	if quit := Dispatch(Event{Kind: KeyQuit}, ctrl, nil); !quit {
		t.Fatalf("expected quit=true for KeyQuit")
	}
	if quit := Dispatch(Event{Kind: KeyTogglePause}, ctrl, nil); quit {
		t.Fatalf("expected quit=false for non-quit event")
	}
}

func TestDispatchSetStepUsesZeroIndexedDigit(t *testing.T) {
	ctrl := newTestController()
	Dispatch(Event{Kind: KeySetStep, Digit: 4}, ctrl, nil) // '5' key -> index 4 -> 1s step
	ctrl.SeekBackward()
	want := uint64(1000) * uint64(ctrl.DeviceInfo().SampleRate) * uint64(ctrl.DeviceInfo().Channels) / 1000
	if ctrl.TargetDelaySamples() != want {
		t.Fatalf("expected target delay %d after 1s step seek, got %d", want, ctrl.TargetDelaySamples())
	}
}

func TestDispatchToggleHelp(t *testing.T) {
	ctrl := newTestController()
	r := NewRenderer(nopWriter{})
	if r.showHelp {
		t.Fatalf("expected help to start hidden")
	}
	Dispatch(Event{Kind: KeyToggleHelp}, ctrl, r)
	if !r.showHelp {
		t.Fatalf("expected help to toggle on")
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
