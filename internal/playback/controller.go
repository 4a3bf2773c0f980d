package playback

import (
	"math"
	"sync/atomic"

	"github.com/agalue/shifter/internal/ring"
)

// RampLen is the anti-click ramp length in samples (spec.md §4.C).
const RampLen = 256

// decayFactor is the per-callback exponential decay applied to peak meters
// (spec.md §4.C "publish_peaks").
const decayFactor = 0.85

// volumeStep is the ± step size volume_up/volume_down apply.
const volumeStep = 0.05

const (
	minVolume = 0.0
	maxVolume = 1.5
)

// StepTableMs is the fixed seek-step table indexed by seek_step_index
// (spec.md §4.C "set_step").
var StepTableMs = [...]uint64{1, 10, 100, 500, 1000, 2000, 5000, 10000, 30000}

// StepLabels mirrors StepTableMs for TUI display.
var StepLabels = [...]string{"1ms", "10ms", "100ms", "500ms", "1s", "2s", "5s", "10s", "30s"}

// DeviceInfo carries the opaque strings reported at init (spec.md §4.E
// "device_info").
type DeviceInfo struct {
	InputName  string
	OutputName string
	SampleRate int
	Channels   int
}

// Snapshot is a non-atomic bundle of the controller's fields for UI
// rendering. Fields are read independently and may be mildly inconsistent
// with one another under concurrent audio-callback updates — acceptable
// for a meter/status display (spec.md §4.C "snapshot").
type Snapshot struct {
	State              State
	TargetDelayMs      float64
	Volume             float64
	StepLabel          string
	BufferFillPercent  float64
	PeakLeft           float64
	PeakRight          float64
	PeakLeftDBFS       float64
	PeakRightDBFS      float64
	LastCallbackStatus ring.Result
}

// Controller is the atomic bridge between the UI thread and the two
// real-time audio callbacks (spec component C). Every field is an
// independently-atomic word; there is no cross-field transactional
// consistency, by design (spec.md §5 "Shared state discipline").
type Controller struct {
	buf *ring.Buffer
	dev DeviceInfo

	maxDelaySamples uint64

	state          atomic.Uint32
	targetDelay    atomic.Uint64
	volumeMilli    atomic.Uint32
	rampRemaining  atomic.Uint32
	peakLeftMilli  atomic.Uint32
	peakRightMilli atomic.Uint32
	stepIndex      atomic.Uint32
	lastStatus     atomic.Uint32 // ring.Result, additive status flag (SPEC_FULL.md "SUPPLEMENTED FEATURES")
}

// New creates a controller bound to buf (used only to compute the buffer
// fill percentage for Snapshot) with the given device metadata,
// maximum-seekable delay, and initial base delay (spec.md §4.B "Initial
// state: Live with target_delay = configured base delay").
func New(buf *ring.Buffer, dev DeviceInfo, maxDelaySamples uint64, baseDelaySamples uint64) *Controller {
	c := &Controller{
		buf:             buf,
		dev:             dev,
		maxDelaySamples: maxDelaySamples,
	}
	if baseDelaySamples > maxDelaySamples {
		baseDelaySamples = maxDelaySamples
	}
	c.targetDelay.Store(baseDelaySamples)
	if baseDelaySamples > 0 {
		c.state.Store(uint32(TimeShifted))
	} else {
		c.state.Store(uint32(Live))
	}
	c.volumeMilli.Store(1000) // 1.0
	return c
}

// DeviceInfo returns the opaque device metadata captured at init.
func (c *Controller) DeviceInfo() DeviceInfo { return c.dev }

// --- UI command methods (spec.md §4.C) ---

// TogglePause transitions Live|TimeShifted -> Paused, or Paused -> Live (if
// target delay is zero) else TimeShifted, re-arming the anti-click ramp on
// resume.
func (c *Controller) TogglePause() {
	for {
		old := stateFromByte(c.state.Load())
		var next State
		rearm := false
		switch old {
		case Live, TimeShifted:
			next = Paused
		case Paused:
			if c.targetDelay.Load() == 0 {
				next = Live
			} else {
				next = TimeShifted
			}
			rearm = true
		}
		if c.state.CompareAndSwap(uint32(old), uint32(next)) {
			if rearm {
				c.rampRemaining.Store(RampLen)
			}
			return
		}
	}
}

// SeekBackward increases target delay by the current step, clamped to
// [0, maxDelaySamples], moving to TimeShifted if the result is non-zero.
func (c *Controller) SeekBackward() {
	step := c.currentStepSamples()
	for {
		old := c.targetDelay.Load()
		next := old + step
		if next > c.maxDelaySamples {
			next = c.maxDelaySamples
		}
		if c.targetDelay.CompareAndSwap(old, next) {
			if next > 0 {
				c.state.Store(uint32(TimeShifted))
			}
			c.rampRemaining.Store(RampLen)
			return
		}
	}
}

// SeekForward decreases target delay by the current step, saturating at
// zero. Reaching zero transitions to Live. If already at zero, this is a
// no-op (spec.md §4.B "Live --seek_forward (already 0)--> no-op").
func (c *Controller) SeekForward() {
	step := c.currentStepSamples()
	for {
		old := c.targetDelay.Load()
		if old == 0 {
			return
		}
		var next uint64
		if step >= old {
			next = 0
		} else {
			next = old - step
		}
		if c.targetDelay.CompareAndSwap(old, next) {
			if next == 0 {
				c.state.Store(uint32(Live))
			}
			c.rampRemaining.Store(RampLen)
			return
		}
	}
}

// JumpToLive sets target delay to zero and state to Live unconditionally.
func (c *Controller) JumpToLive() {
	c.targetDelay.Store(0)
	c.state.Store(uint32(Live))
	c.rampRemaining.Store(RampLen)
}

// SetStep writes the seek-step table index, clamped to a valid entry.
func (c *Controller) SetStep(index int) {
	if index < 0 {
		index = 0
	}
	if index >= len(StepTableMs) {
		index = len(StepTableMs) - 1
	}
	c.stepIndex.Store(uint32(index))
}

// VolumeUp increases volume by volumeStep, clamped to [0.0, 1.5].
func (c *Controller) VolumeUp() { c.adjustVolume(volumeStep) }

// VolumeDown decreases volume by volumeStep, clamped to [0.0, 1.5].
func (c *Controller) VolumeDown() { c.adjustVolume(-volumeStep) }

func (c *Controller) adjustVolume(delta float64) {
	for {
		old := c.volumeMilli.Load()
		v := float64(old)/1000 + delta
		if v < minVolume {
			v = minVolume
		}
		if v > maxVolume {
			v = maxVolume
		}
		next := uint32(math.Round(v * 1000))
		if c.volumeMilli.CompareAndSwap(old, next) {
			return
		}
	}
}

// Snapshot bundles the current state for UI rendering (spec.md §4.C/§4.E).
func (c *Controller) Snapshot() Snapshot {
	state := stateFromByte(c.state.Load())
	volume := float64(c.volumeMilli.Load()) / 1000
	stepIdx := int(c.stepIndex.Load())
	if stepIdx >= len(StepLabels) {
		stepIdx = 0
	}

	var fillPct float64
	if c.buf != nil && c.buf.Capacity() > 0 {
		fillPct = float64(c.buf.AvailableSamples()) / float64(c.buf.Capacity()) * 100
	}

	peakL := float64(c.peakLeftMilli.Load()) / 1000
	peakR := float64(c.peakRightMilli.Load()) / 1000

	return Snapshot{
		State:              state,
		TargetDelayMs:      c.targetDelayMs(),
		Volume:             volume,
		StepLabel:          StepLabels[stepIdx],
		BufferFillPercent:  fillPct,
		PeakLeft:           peakL,
		PeakRight:          peakR,
		PeakLeftDBFS:       toDBFS(peakL),
		PeakRightDBFS:      toDBFS(peakR),
		LastCallbackStatus: ring.Result(c.lastStatus.Load()),
	}
}

func (c *Controller) targetDelayMs() float64 {
	if c.dev.SampleRate <= 0 || c.dev.Channels <= 0 {
		return 0
	}
	samples := float64(c.targetDelay.Load())
	return samples / float64(c.dev.SampleRate*c.dev.Channels) * 1000
}

func toDBFS(peak float64) float64 {
	const floorDB = -60
	if peak <= 0 {
		return floorDB
	}
	db := 20 * math.Log10(peak)
	if db < floorDB {
		return floorDB
	}
	return db
}

func (c *Controller) currentStepSamples() uint64 {
	idx := int(c.stepIndex.Load())
	if idx >= len(StepTableMs) {
		idx = 0
	}
	ms := StepTableMs[idx]
	return ms * uint64(c.dev.SampleRate) * uint64(c.dev.Channels) / 1000
}

// --- Audio-callback query/update methods (spec.md §4.C) ---

// CurrentState returns the playback state (read by UI and audio-out).
func (c *Controller) CurrentState() State { return stateFromByte(c.state.Load()) }

// TargetDelaySamples returns the current target delay in samples.
func (c *Controller) TargetDelaySamples() uint64 { return c.targetDelay.Load() }

// MaxDelaySamples returns the configured maximum seekable delay.
func (c *Controller) MaxDelaySamples() uint64 { return c.maxDelaySamples }

// Volume returns the current linear volume multiplier.
func (c *Controller) Volume() float64 { return float64(c.volumeMilli.Load()) / 1000 }

// ConsumeRamp atomically decrements ramp_remaining by up to n and returns
// its value *before* the decrement (spec.md §4.C "consume_ramp").
func (c *Controller) ConsumeRamp(n uint32) uint32 {
	for {
		old := c.rampRemaining.Load()
		var next uint32
		if old <= n {
			next = 0
		} else {
			next = old - n
		}
		if c.rampRemaining.CompareAndSwap(old, next) {
			return old
		}
	}
}

// RampRemaining peeks at the current ramp counter without consuming it.
func (c *Controller) RampRemaining() uint32 { return c.rampRemaining.Load() }

// ArmRamp re-arms the anti-click ramp to full length. Called by the output
// callback itself when a resync jumps the read position (spec.md §4.D step
// 4), in addition to the UI-driven seek/pause methods above.
func (c *Controller) ArmRamp() { c.rampRemaining.Store(RampLen) }

// PublishPeaks applies exponential decay and publishes the new per-channel
// peak levels (spec.md §4.C "publish_peaks"): peak_new = max(incoming,
// peak_prev*decayFactor).
func (c *Controller) PublishPeaks(left, right float32) {
	publishOne(&c.peakLeftMilli, left)
	publishOne(&c.peakRightMilli, right)
}

func publishOne(field *atomic.Uint32, incoming float32) {
	for {
		old := field.Load()
		decayed := float64(old) / 1000 * decayFactor
		next := float64(incoming)
		if decayed > next {
			next = decayed
		}
		if next < 0 {
			next = 0
		}
		newMilli := uint32(math.Round(next * 1000))
		if field.CompareAndSwap(old, newMilli) {
			return
		}
	}
}

// SetLastCallbackStatus records the most recent output-callback result, a
// transient status flag read by the UI (spec.md §7 "Ring overrun/underrun").
func (c *Controller) SetLastCallbackStatus(r ring.Result) {
	c.lastStatus.Store(uint32(r))
}
