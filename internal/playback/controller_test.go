package playback

import (
	"testing"

	"github.com/agalue/shifter/internal/ring"
)

func newTestController() *Controller {
	buf := ring.New(48000*10, 480)
	dev := DeviceInfo{InputName: "BlackHole 2ch", OutputName: "MacBook Pro Speakers", SampleRate: 48000, Channels: 2}
	return New(buf, dev, uint64(48000*2*60), 0)
}

func TestTargetDelayStaysInRange(t *testing.T) {
	c := newTestController()
	c.SetStep(6) // 5s
	for i := 0; i < 50; i++ {
		c.SeekBackward()
	}
	if d := c.TargetDelaySamples(); d > c.MaxDelaySamples() {
		t.Fatalf("target delay exceeded max: %d > %d", d, c.MaxDelaySamples())
	}
	for i := 0; i < 100; i++ {
		c.SeekForward()
	}
	if d := c.TargetDelaySamples(); d != 0 {
		t.Fatalf("expected target delay 0 after saturating seek_forward, got %d", d)
	}
}

func TestVolumeClamp(t *testing.T) {
	c := newTestController()
	for i := 0; i < 40; i++ {
		c.VolumeUp()
	}
	if v := c.Volume(); v != 1.5 {
		t.Fatalf("expected volume 1.5, got %v", v)
	}
	for i := 0; i < 60; i++ {
		c.VolumeDown()
	}
	if v := c.Volume(); v != 0.0 {
		t.Fatalf("expected volume 0.0, got %v", v)
	}
}

func TestStateTransitions(t *testing.T) {
	c := newTestController()
	if c.CurrentState() != Live {
		t.Fatalf("expected initial state Live, got %v", c.CurrentState())
	}

	c.TogglePause()
	if c.CurrentState() != Paused {
		t.Fatalf("expected Paused after toggle, got %v", c.CurrentState())
	}

	c.TogglePause() // target delay still 0 -> resumes to Live
	if c.CurrentState() != Live {
		t.Fatalf("expected Live after resume with zero delay, got %v", c.CurrentState())
	}

	c.SeekBackward()
	if c.CurrentState() != TimeShifted {
		t.Fatalf("expected TimeShifted after seek_backward, got %v", c.CurrentState())
	}

	c.TogglePause()
	if c.CurrentState() != Paused {
		t.Fatalf("expected Paused, got %v", c.CurrentState())
	}
	c.TogglePause() // target delay > 0 -> resumes to TimeShifted
	if c.CurrentState() != TimeShifted {
		t.Fatalf("expected TimeShifted after resume with nonzero delay, got %v", c.CurrentState())
	}

	c.JumpToLive()
	if c.CurrentState() != Live || c.TargetDelaySamples() != 0 {
		t.Fatalf("expected Live/0 after jump_to_live, got %v/%d", c.CurrentState(), c.TargetDelaySamples())
	}
}

func TestRampRearmsOnPositionChange(t *testing.T) {
	c := newTestController()
	c.ConsumeRamp(RampLen) // drain to 0
	if c.RampRemaining() != 0 {
		t.Fatalf("expected ramp drained, got %d", c.RampRemaining())
	}

	c.SeekBackward()
	if c.RampRemaining() != RampLen {
		t.Fatalf("expected ramp re-armed to %d after seek, got %d", RampLen, c.RampRemaining())
	}
}

func TestConsumeRampPartial(t *testing.T) {
	c := newTestController()
	c.JumpToLive()
	prev := c.ConsumeRamp(100)
	if prev != RampLen {
		t.Fatalf("expected previous value %d, got %d", RampLen, prev)
	}
	if c.RampRemaining() != RampLen-100 {
		t.Fatalf("expected remaining %d, got %d", RampLen-100, c.RampRemaining())
	}
}

func TestPublishPeaksDecay(t *testing.T) {
	c := newTestController()
	c.PublishPeaks(1.0, 0.5)
	snap := c.Snapshot()
	if snap.PeakLeft != 1.0 || snap.PeakRight != 0.5 {
		t.Fatalf("unexpected initial peaks: %+v", snap)
	}

	// Decay with zero incoming signal.
	c.PublishPeaks(0, 0)
	snap = c.Snapshot()
	if snap.PeakLeft >= 1.0 || snap.PeakLeft <= 0 {
		t.Fatalf("expected decayed peak between 0 and 1.0, got %v", snap.PeakLeft)
	}
}

func TestSeekForwardNoopAtZero(t *testing.T) {
	c := newTestController()
	c.SeekForward()
	if c.CurrentState() != Live || c.TargetDelaySamples() != 0 {
		t.Fatalf("expected no-op at zero delay, got state=%v delay=%d", c.CurrentState(), c.TargetDelaySamples())
	}
}
