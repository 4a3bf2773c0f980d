package ring

import (
	"sync"
	"testing"
)

func seq(n int, start float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = start + float32(i)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	b := New(1024, 16)
	in := seq(256, 1)
	b.Write(in)

	out := make([]float32, len(in))
	if res := b.Read(out); res != Ok {
		t.Fatalf("expected Ok, got %v", res)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: got %v want %v", i, out[i], in[i])
		}
	}
}

func TestWrap(t *testing.T) {
	const capacity = 100
	const K = 30
	b := New(capacity, 8)

	in := seq(capacity+K, 0)
	b.Write(in)

	out := make([]float32, capacity)
	if res := b.Read(out); res != Ok {
		t.Fatalf("expected Ok, got %v", res)
	}
	want := in[K : K+capacity]
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("sample %d: got %v want %v", i, out[i], want[i])
		}
	}
}

func TestUnderrun(t *testing.T) {
	b := New(1024, 16)
	b.Write(seq(10, 1))

	out := make([]float32, 20)
	res := b.Read(out)
	if res != Underrun {
		t.Fatalf("expected Underrun, got %v", res)
	}
	for i := 0; i < 10; i++ {
		if out[i] != float32(1+i) {
			t.Fatalf("sample %d: got %v", i, out[i])
		}
	}
	for i := 10; i < 20; i++ {
		if out[i] != 0 {
			t.Fatalf("expected zero padding at %d, got %v", i, out[i])
		}
	}
	if b.ReadPos() != 20 {
		t.Fatalf("read position should advance by requested length, got %d", b.ReadPos())
	}
}

func TestUnderrunNoDataDoesNotAdvance(t *testing.T) {
	b := New(1024, 16)
	out := make([]float32, 8)
	if res := b.Read(out); res != Underrun {
		t.Fatalf("expected Underrun, got %v", res)
	}
	if b.ReadPos() != 0 {
		t.Fatalf("read position must not advance on a no-data underrun, got %d", b.ReadPos())
	}
}

func TestOverrunRecovery(t *testing.T) {
	const capacity = 256
	const margin = 16
	b := New(capacity, margin)

	b.Write(seq(capacity*2, 0))

	out := make([]float32, 64)
	res := b.Read(out)
	if res != Overrun {
		t.Fatalf("expected Overrun, got %v", res)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("expected silence at %d, got %v", i, v)
		}
	}

	wantReadPos := b.WritePos() - capacity + margin
	if b.ReadPos() != wantReadPos {
		t.Fatalf("read position after overrun: got %d want %d", b.ReadPos(), wantReadPos)
	}

	// Subsequent writes/reads resume normally. Recovery leaves margin
	// samples of room, so the next write is one margin-sized chunk.
	b.Write(seq(margin, 1000))
	out2 := make([]float32, 16)
	if res := b.Read(out2); res != Ok {
		t.Fatalf("expected Ok after recovery, got %v", res)
	}
}

func TestMonotonicity(t *testing.T) {
	b := New(128, 8)
	var lastW, lastR uint64
	for i := 0; i < 50; i++ {
		b.Write(seq(10, float32(i)))
		if b.WritePos() < lastW {
			t.Fatalf("write position went backwards")
		}
		lastW = b.WritePos()

		out := make([]float32, 5)
		b.Read(out)
		if b.ReadPos() < lastR {
			t.Fatalf("read position went backwards")
		}
		lastR = b.ReadPos()
	}
}

func TestEmptyReadIsNoop(t *testing.T) {
	b := New(64, 4)
	b.Write(seq(10, 0))
	before := b.ReadPos()
	if res := b.Read(nil); res != Ok {
		t.Fatalf("expected Ok for empty read, got %v", res)
	}
	if b.ReadPos() != before {
		t.Fatalf("empty read must not move read position")
	}
}

func TestWriteWiderThanCapacityAdvancesByRequestedLength(t *testing.T) {
	const capacity = 32
	b := New(capacity, 4)
	in := seq(capacity+10, 0)
	b.Write(in)
	if b.WritePos() != uint64(len(in)) {
		t.Fatalf("write position should advance by len(data), got %d", b.WritePos())
	}
}

// TestSPSCNonOverlap races a single producer against a single consumer
// through Write and Read. It does not inspect the samples read; it fails
// only if either side panics.
func TestSPSCNonOverlap(t *testing.T) {
	const capacity = 4096
	const margin = 64
	const totalWrites = 20000
	b := New(capacity, margin)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		chunk := make([]float32, 32)
		for w := 0; w < totalWrites; w++ {
			for i := range chunk {
				chunk[i] = float32(w)
			}
			b.Write(chunk)
		}
	}()

	go func() {
		defer wg.Done()
		out := make([]float32, 32)
		for i := 0; i < totalWrites; i++ {
			b.Read(out)
		}
	}()

	wg.Wait()
}
