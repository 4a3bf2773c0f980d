// Shifter is a terminal-hosted time-shift ("DVR for audio") player: it
// captures from a virtual loopback input device, holds a rolling window of
// recent audio in memory, and plays it back live or with an
// operator-controlled delay.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/agalue/shifter/internal/config"
	"github.com/agalue/shifter/internal/device"
	"github.com/agalue/shifter/internal/pipeline"
	"github.com/agalue/shifter/internal/playback"
	"github.com/agalue/shifter/internal/ring"
	"github.com/agalue/shifter/internal/tui"
)

const (
	sampleRate = 48000
	channels   = 2
	periodMs   = 20

	// ringMargin is the safety margin used when recovering from an
	// overrun: one callback buffer's worth of samples.
	ringMargin = sampleRate * channels * periodMs / 1000
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	enumerator, err := device.NewEnumerator()
	if err != nil {
		log.Fatalf("failed to initialize audio backend: %v", err)
	}
	defer enumerator.Close()

	inputs, outputs, err := enumerator.ListDevices()
	if err != nil {
		log.Fatalf("failed to enumerate devices: %v", err)
	}

	if cfg.ListDevices {
		printDeviceTable(inputs, outputs)
		return
	}

	inDev, err := device.SelectCapture(inputs, cfg.InputDeviceFilter)
	if err != nil {
		printDeviceTable(inputs, outputs)
		log.Fatalf("input device selection failed: %v", err)
	}
	outDev, err := device.SelectPlayback(outputs, cfg.OutputDeviceFilter, inDev)
	if err != nil {
		printDeviceTable(inputs, outputs)
		log.Fatalf("output device selection failed: %v", err)
	}
	log.Printf("input device:  %s", inDev)
	log.Printf("output device: %s", outDev)

	capacity := cfg.BufferSeconds * sampleRate * channels
	buf := ring.New(capacity, ringMargin)

	baseDelaySamples := uint64(cfg.BaseDelayMs) * uint64(sampleRate) * uint64(channels) / 1000
	maxDelaySamples := uint64(capacity)

	devInfo := playback.DeviceInfo{InputName: inDev.Name, OutputName: outDev.Name, SampleRate: sampleRate, Channels: channels}
	ctrl := playback.New(buf, devInfo, maxDelaySamples, baseDelaySamples)

	streams, err := enumerator.Open(device.OpenConfig{
		Input:      inDev,
		Output:     outDev,
		SampleRate: sampleRate,
		Channels:   channels,
		PeriodMs:   periodMs,
		InputCallback: func(samples []float32) {
			pipeline.InputCallback(buf, samples)
		},
		OutputCallback: func(outBuf []float32) {
			pipeline.OutputCallback(buf, ctrl, outBuf, channels)
		},
	})
	if err != nil {
		log.Fatalf("failed to open audio streams: %v", err)
	}
	defer streams.Close()

	if err := streams.Start(); err != nil {
		log.Fatalf("failed to start audio streams: %v", err)
	}
	log.Printf("streaming at %d Hz, %d ch, buffer holds %ds of history", streams.SampleRate, streams.Channels, cfg.BufferSeconds)

	reader, err := tui.NewReader()
	if err != nil {
		log.Fatalf("failed to open terminal for input: %v", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Printf("warning: failed to restore terminal: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	renderer := tui.NewRenderer(os.Stdout)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		renderLoop(ctx, renderer, ctrl, devInfo)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		inputLoop(ctx, reader, ctrl, renderer, cancel)
	}()

	select {
	case <-sigChan:
		log.Println("shutting down")
	case <-ctx.Done():
		log.Println("quit requested")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		// inputLoop may still be blocked in a raw terminal read with no
		// pending keypress; forcing exit here is the same tradeoff the
		// shutdown timeout makes for any blocking I/O goroutine.
		log.Println("shutdown timeout, forcing exit")
	}
}

func renderLoop(ctx context.Context, r *tui.Renderer, ctrl *playback.Controller, dev playback.DeviceInfo) {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Render(ctrl.Snapshot(), dev)
		}
	}
}

func inputLoop(ctx context.Context, reader *tui.Reader, ctrl *playback.Controller, r *tui.Renderer, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ev, err := reader.Next()
		if err != nil {
			cancel()
			return
		}
		if tui.Dispatch(ev, ctrl, r) {
			cancel()
			return
		}
	}
}

func printDeviceTable(inputs, outputs []device.Info) {
	fmt.Println("Input devices:")
	for _, in := range inputs {
		fmt.Printf("  %s\n", in)
	}
	fmt.Println("Output devices:")
	for _, out := range outputs {
		fmt.Printf("  %s\n", out)
	}
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stderr)
}
