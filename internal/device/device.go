// Package device wraps malgo device enumeration and lifecycle (spec
// component F): listing capture/playback devices, applying the
// virtual-loopback device-selection policy, and opening a negotiated
// capture+playback pair wired to the pipeline package's callbacks. It plays
// the same FFI-isolation role that
// agalue-sherpa-voice-assistant/internal/audio/{capture,playback}.go play
// for the teacher, generalized from two independently-initialized contexts
// to one shared context so capture and playback can be opened against the
// same negotiated sample rate (spec.md §6).
package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/gen2brain/malgo"
)

// virtualDeviceNames is the allow-list substring policy for the capture
// device: it must be a loopback/virtual-audio device, never a physical
// microphone (spec.md §6 "Device selection").
var virtualDeviceNames = []string{"blackhole", "soundflower", "loopback"}

// Info describes one enumerated device.
type Info struct {
	Name      string
	IsDefault bool

	raw malgo.DeviceInfo
}

func (i Info) String() string {
	if i.IsDefault {
		return i.Name + " (default)"
	}
	return i.Name
}

func isVirtualDeviceName(name string) bool {
	lower := strings.ToLower(name)
	for _, v := range virtualDeviceNames {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// Enumerator owns the shared malgo context used for both device listing and
// stream opening.
type Enumerator struct {
	ctx *malgo.AllocatedContext
}

// NewEnumerator initializes the underlying audio backend context.
func NewEnumerator() (*Enumerator, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize audio context: %w", err)
	}
	return &Enumerator{ctx: ctx}, nil
}

// Close releases the audio backend context. Call only after all Streams
// opened from this Enumerator have been closed.
func (e *Enumerator) Close() error {
	if e.ctx == nil {
		return nil
	}
	if err := e.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninit audio context: %w", err)
	}
	e.ctx.Free()
	e.ctx = nil
	return nil
}

// ListDevices enumerates capture and playback devices.
func (e *Enumerator) ListDevices() (inputs, outputs []Info, err error) {
	capInfos, err := e.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	playInfos, err := e.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, nil, fmt.Errorf("enumerate playback devices: %w", err)
	}

	inputs = make([]Info, len(capInfos))
	for i, raw := range capInfos {
		inputs[i] = Info{Name: raw.Name(), IsDefault: raw.IsDefault != 0, raw: raw}
	}
	outputs = make([]Info, len(playInfos))
	for i, raw := range playInfos {
		outputs[i] = Info{Name: raw.Name(), IsDefault: raw.IsDefault != 0, raw: raw}
	}
	return inputs, outputs, nil
}

// SelectCapture picks the capture device whose name contains nameFilter
// (case-insensitive) and is a recognized virtual/loopback device. An empty
// nameFilter matches any virtual device name.
func SelectCapture(inputs []Info, nameFilter string) (Info, error) {
	filter := strings.ToLower(nameFilter)
	for _, in := range inputs {
		if filter != "" && !strings.Contains(strings.ToLower(in.Name), filter) {
			continue
		}
		if isVirtualDeviceName(in.Name) {
			return in, nil
		}
	}
	return Info{}, fmt.Errorf("no virtual/loopback input device matching %q found among %d capture devices (expected a BlackHole/Soundflower/loopback device)", nameFilter, len(inputs))
}

// SelectPlayback picks the playback device whose name contains nameFilter
// (case-insensitive), rejecting virtual-device names and anything
// identical to the already-selected capture device. An empty nameFilter
// prefers the system default output.
func SelectPlayback(outputs []Info, nameFilter string, chosenInput Info) (Info, error) {
	filter := strings.ToLower(nameFilter)

	var fallback *Info
	for idx := range outputs {
		out := outputs[idx]
		if isVirtualDeviceName(out.Name) {
			continue
		}
		if strings.EqualFold(out.Name, chosenInput.Name) {
			continue
		}
		if filter == "" {
			if out.IsDefault {
				return out, nil
			}
			if fallback == nil {
				fallback = &out
			}
			continue
		}
		if strings.Contains(strings.ToLower(out.Name), filter) {
			return out, nil
		}
	}
	if filter == "" && fallback != nil {
		return *fallback, nil
	}
	return Info{}, fmt.Errorf("no physical output device matching %q found distinct from input %q among %d playback devices", nameFilter, chosenInput.Name, len(outputs))
}

// OpenConfig configures a negotiated capture+playback stream pair.
type OpenConfig struct {
	Input  Info
	Output Info

	SampleRate int
	Channels   int
	PeriodMs   uint32

	// InputCallback receives interleaved float32 samples captured from
	// Input; called from the capture device's real-time thread.
	InputCallback func(samples []float32)
	// OutputCallback fills an interleaved float32 buffer for Output;
	// called from the playback device's real-time thread.
	OutputCallback func(out []float32)
}

// Streams is a pair of live capture and playback devices sharing a sample
// rate and channel count.
type Streams struct {
	captureDevice  *malgo.Device
	playbackDevice *malgo.Device

	SampleRate int
	Channels   int
}

// Open negotiates and initializes a capture+playback device pair. Devices
// are initialized stopped; call Start to begin streaming.
func (e *Enumerator) Open(cfg OpenConfig) (*Streams, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("open streams: sample rate and channel count must be positive")
	}

	captureConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	captureConfig.Capture.Format = malgo.FormatF32
	captureConfig.Capture.Channels = uint32(cfg.Channels)
	captureConfig.Capture.DeviceID = cfg.Input.raw.ID.Pointer()
	captureConfig.SampleRate = uint32(cfg.SampleRate)
	captureConfig.PeriodSizeInMilliseconds = cfg.PeriodMs

	playbackConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	playbackConfig.Playback.Format = malgo.FormatF32
	playbackConfig.Playback.Channels = uint32(cfg.Channels)
	playbackConfig.Playback.DeviceID = cfg.Output.raw.ID.Pointer()
	playbackConfig.SampleRate = uint32(cfg.SampleRate)
	playbackConfig.PeriodSizeInMilliseconds = cfg.PeriodMs

	captureScratch := newSampleScratch(cfg.SampleRate, cfg.Channels)
	onRecvFrames := func(_, inputBytes []byte, _ uint32) {
		samples := captureScratch.fromBytes(inputBytes)
		if cfg.InputCallback != nil {
			cfg.InputCallback(samples)
		}
	}

	captureDevice, err := malgo.InitDevice(e.ctx.Context, captureConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return nil, fmt.Errorf("initialize capture device %q: %w", cfg.Input.Name, err)
	}

	playbackScratch := newSampleScratch(cfg.SampleRate, cfg.Channels)
	onSendFrames := func(outputBytes, _ []byte, _ uint32) {
		samples := playbackScratch.sized(len(outputBytes) / 4)
		if cfg.OutputCallback != nil {
			cfg.OutputCallback(samples)
		}
		writeFloat32Bytes(outputBytes, samples)
	}

	playbackDevice, err := malgo.InitDevice(e.ctx.Context, playbackConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		captureDevice.Uninit()
		return nil, fmt.Errorf("initialize playback device %q: %w", cfg.Output.Name, err)
	}

	if captureDevice.SampleRate() != playbackDevice.SampleRate() {
		captureDevice.Uninit()
		playbackDevice.Uninit()
		return nil, fmt.Errorf("capture/playback sample rate mismatch: %d Hz != %d Hz (devices could not agree on a shared rate)",
			captureDevice.SampleRate(), playbackDevice.SampleRate())
	}

	return &Streams{
		captureDevice: captureDevice,
		playbackDevice: playbackDevice,
		SampleRate:     int(captureDevice.SampleRate()),
		Channels:       cfg.Channels,
	}, nil
}

// Start begins streaming on both devices.
func (s *Streams) Start() error {
	if err := s.captureDevice.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	if err := s.playbackDevice.Start(); err != nil {
		_ = s.captureDevice.Stop()
		return fmt.Errorf("start playback device: %w", err)
	}
	return nil
}

// Close stops and releases both devices. Safe to call multiple times.
func (s *Streams) Close() {
	if s.captureDevice != nil {
		s.captureDevice.Stop()
		s.captureDevice.Uninit()
		s.captureDevice = nil
	}
	if s.playbackDevice != nil {
		s.playbackDevice.Stop()
		s.playbackDevice.Uninit()
		s.playbackDevice = nil
	}
}

// sampleScratch is a per-stream reusable float32 buffer, avoiding a fresh
// allocation in the real-time callback on every call (spec.md §4.D "no
// allocation").
type sampleScratch struct {
	buf []float32
}

func newSampleScratch(sampleRate, channels int) *sampleScratch {
	// One second of headroom is comfortably larger than any realistic
	// period size.
	return &sampleScratch{buf: make([]float32, 0, sampleRate*channels)}
}

func (s *sampleScratch) sized(n int) []float32 {
	if cap(s.buf) < n {
		s.buf = make([]float32, n)
		return s.buf
	}
	return s.buf[:n]
}

func (s *sampleScratch) fromBytes(data []byte) []float32 {
	n := len(data) / 4
	out := s.sized(n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func writeFloat32Bytes(dst []byte, samples []float32) {
	for i, v := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
