// Package pipeline implements the input and output audio-callback
// algorithms (spec component D). Both are pure functions of a ring.Buffer
// and a playback.Controller so they can be exercised directly in tests
// without a real audio device; internal/device wires them into malgo's
// DeviceCallbacks closures the same way
// agalue-sherpa-voice-assistant/internal/audio wires its own onRecvFrames /
// onSendFrames closures.
package pipeline

import (
	"math"

	"github.com/agalue/shifter/internal/playback"
	"github.com/agalue/shifter/internal/ring"
)

// InputCallback is the producer side: no allocation, no locking, no
// blocking I/O, no panics, always succeeds (spec.md §4.D "Input callback").
func InputCallback(buf *ring.Buffer, input []float32) {
	buf.Write(input)
}

// OutputCallback is the consumer side (spec.md §4.D "Output callback").
// output is a writable interleaved buffer for channels channels; its
// length is frames_requested*channels. Every failure mode (underrun,
// overrun, resync) degrades to silence plus a status flag — nothing here
// ever returns an error to the host framework.
func OutputCallback(buf *ring.Buffer, ctrl *playback.Controller, output []float32, channels int) {
	if len(output) == 0 || channels <= 0 {
		return
	}

	if ctrl.CurrentState() == playback.Paused {
		zero(output)
		ctrl.PublishPeaks(0, 0)
		return
	}

	w := buf.WritePos()
	t := ctrl.TargetDelaySamples()
	callbackSamples := uint64(len(output))

	desired := desiredReadPosition(w, callbackSamples, t)

	r := buf.ReadPos()
	// One callback buffer is the resync threshold (spec.md §9 "a
	// reasonable default is one callback buffer").
	threshold := callbackSamples
	if absDiff(desired, r) > threshold {
		buf.SetReadPosition(buf.ClampReadPosition(desired))
		ctrl.ArmRamp()
	}

	result := buf.Read(output)
	ctrl.SetLastCallbackStatus(result)

	applyVolumeAndRamp(ctrl, output)

	left, right := peakMagnitudes(output, channels)
	ctrl.PublishPeaks(left, right)
}

// desiredReadPosition computes W - frames_requested*channels - T, clamped
// to [0, W] (spec.md §4.D step 3). callbackSamples is already
// frames_requested*channels.
func desiredReadPosition(writePos, callbackSamples, targetDelay uint64) uint64 {
	back := callbackSamples + targetDelay
	if back > writePos {
		return 0
	}
	return writePos - back
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// applyVolumeAndRamp applies volume, then, while ramp_remaining > 0, a
// linear per-sample gain ramp, consuming exactly one callback's worth of
// ramp budget either way (spec.md §4.C "Anti-click ramp" / §4.D step 6).
func applyVolumeAndRamp(ctrl *playback.Controller, output []float32) {
	vol := float32(ctrl.Volume())
	n := uint32(len(output))
	rampAtEntry := ctrl.ConsumeRamp(n)

	if rampAtEntry == 0 {
		for i := range output {
			output[i] *= vol
		}
		return
	}

	for i := range output {
		gain := float32(1)
		if uint32(i) < rampAtEntry {
			g := 1 - float32(rampAtEntry-uint32(i))/float32(playback.RampLen)
			if g < 0 {
				g = 0
			}
			if g > 1 {
				g = 1
			}
			gain = g
		}
		output[i] *= vol * gain
	}
}

// peakMagnitudes computes the per-channel peak absolute amplitude within
// this buffer (spec.md §4.D step 7).
func peakMagnitudes(output []float32, channels int) (left, right float32) {
	if channels == 1 {
		for _, s := range output {
			if a := float32(math.Abs(float64(s))); a > left {
				left = a
			}
		}
		right = left
		return
	}

	for i := 0; i+channels-1 < len(output); i += channels {
		if a := float32(math.Abs(float64(output[i]))); a > left {
			left = a
		}
		if a := float32(math.Abs(float64(output[i+1]))); a > right {
			right = a
		}
	}
	return
}

func zero(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
