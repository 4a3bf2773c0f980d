// Package ring implements the lock-free single-producer/single-consumer
// sample ring buffer that sits between the input and output audio callbacks.
//
// Positions are absolute, monotonically increasing sample counts since
// stream start; the physical storage index is always position modulo
// capacity. Unlike a typical chunked audio ring (compare
// agalue-sherpa-voice-assistant's audioChunk ring or
// le-bot-team-leBotChatClient's byte ring), Buffer supports random-access
// reads at any previously-written position via SetReadPosition, which is
// what makes seeking possible.
package ring

import "sync/atomic"

// Result reports the outcome of a Read call.
type Result int

const (
	// Ok indicates every requested sample was available and valid.
	Ok Result = iota
	// Underrun indicates the consumer caught up to (or passed) the
	// producer; some or all of the output was zero-filled.
	Underrun
	// Overrun indicates the producer lapped the consumer; the read
	// position was fast-forwarded and the output was zero-filled.
	Overrun
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case Underrun:
		return "underrun"
	case Overrun:
		return "overrun"
	default:
		return "unknown"
	}
}

// Buffer is a lock-free SPSC ring buffer of interleaved float32 samples.
//
// Exactly one goroutine (the input/producer callback) may call Write.
// Exactly one, possibly different, goroutine (the output/consumer callback)
// may call Read and SetReadPosition. Any other usage violates the safety
// invariant documented on Write/Read.
//
// Storage is a plain slice given interior mutability through direct index
// writes; the SPSC discipline guarantees the producer's writable region
// ([readPos, readPos+capacity)) and the consumer's readable region
// ([readPos, writePos)) never overlap, so no cell is ever concurrently
// written and read. That disjointness, not per-cell locking, is what makes
// this safe.
type Buffer struct {
	storage  []float32
	capacity uint64
	margin   uint64

	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a ring buffer with room for capacitySamples samples. margin is
// the safety margin (in samples) used when recovering from an overrun —
// typically one callback buffer's worth of samples.
func New(capacitySamples int, margin int) *Buffer {
	if capacitySamples <= 0 {
		panic("ring: capacity must be positive")
	}
	if margin < 0 {
		margin = 0
	}
	return &Buffer{
		storage:  make([]float32, capacitySamples),
		capacity: uint64(capacitySamples),
		margin:   uint64(margin),
	}
}

// Capacity returns the total number of sample slots.
func (b *Buffer) Capacity() uint64 { return b.capacity }

// WritePos returns the producer's current absolute write position.
func (b *Buffer) WritePos() uint64 { return b.writePos.Load() }

// ReadPos returns the consumer's current absolute read position.
func (b *Buffer) ReadPos() uint64 { return b.readPos.Load() }

// AvailableSamples reports write_pos - read_pos. Safe to call from any
// goroutine for display purposes; the two loads are not a single atomic
// snapshot, so the result may be off by a few samples under concurrent
// writes, which is acceptable for a UI meter.
func (b *Buffer) AvailableSamples() uint64 {
	w := b.writePos.Load()
	r := b.readPos.Load()
	if r >= w {
		return 0
	}
	return w - r
}

// Write appends data to the buffer, producer-only. If len(data) exceeds
// capacity, only the trailing capacity samples are observable to future
// reads, but the write position still advances by len(data) — positions
// never go backwards and always correspond to real time elapsed at the
// input device.
func (b *Buffer) Write(data []float32) {
	n := uint64(len(data))
	if n == 0 {
		return
	}

	start := b.writePos.Load()
	writeAt := start
	toCopy := data
	if n > b.capacity {
		skip := n - b.capacity
		writeAt = start + skip
		toCopy = data[skip:]
	}

	cap := b.capacity
	for i, s := range toCopy {
		b.storage[(writeAt+uint64(i))%cap] = s
	}

	// Publish the new position last: any goroutine observing this store
	// also observes the sample writes above (Go's atomic operations are
	// sequentially consistent, which is at least as strong as the
	// release/acquire pairing the algorithm requires).
	b.writePos.Store(start + n)
}

// Read fills output with the next len(output) samples starting at the
// current read position, consumer-only.
//
//   - If the consumer has caught up to or passed the producer, output is
//     zeroed and Underrun is returned without advancing read_pos.
//   - If the producer has lapped the consumer (write_pos-read_pos >
//     capacity), read_pos is fast-forwarded to write_pos-capacity+margin,
//     output is zeroed, and Overrun is returned.
//   - Otherwise the available samples (possibly fewer than requested) are
//     copied, the tail zero-padded if short, and read_pos advances by
//     len(output) regardless — read positions always correspond to
//     wall-clock playback slots. A short read (some, but not all, samples
//     available) is reported as Underrun, a full read as Ok.
func (b *Buffer) Read(output []float32) Result {
	m := uint64(len(output))
	if m == 0 {
		return Ok
	}

	w := b.writePos.Load()
	r := b.readPos.Load()

	if r >= w {
		zero(output)
		return Underrun
	}

	if w-r > b.capacity {
		newR := w - b.capacity + b.margin
		b.readPos.Store(newR)
		zero(output)
		return Overrun
	}

	avail := w - r
	n := m
	if n > avail {
		n = avail
	}

	cap := b.capacity
	for i := uint64(0); i < n; i++ {
		output[i] = b.storage[(r+i)%cap]
	}
	if n < m {
		zero(output[n:])
	}

	b.readPos.Store(r + m)

	if n < m {
		return Underrun
	}
	return Ok
}

// SetReadPosition sets the consumer's absolute read position directly,
// consumer-only. Used when the output callback resynchronizes to a new
// target delay. The caller is responsible for clamping pos to
// [write_pos-capacity+margin, write_pos]; use ClampReadPosition to do so.
func (b *Buffer) SetReadPosition(pos uint64) {
	b.readPos.Store(pos)
}

// ClampReadPosition clamps a desired read position into the range this
// buffer can actually serve: no earlier than write_pos-capacity+margin (the
// oldest sample still guaranteed intact) and no later than write_pos.
func (b *Buffer) ClampReadPosition(pos uint64) uint64 {
	w := b.writePos.Load()
	low := uint64(0)
	if w > b.capacity-b.margin {
		low = w - b.capacity + b.margin
	}
	if pos < low {
		return low
	}
	if pos > w {
		return w
	}
	return pos
}

func zero(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
