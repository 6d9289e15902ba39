package split

import (
	"strings"
	"testing"
)

func TestBufferPoolAllocatesOnce(t *testing.T) {
	dev := newMockDevice(1)
	pool := NewBufferPool(dev, WorkStealing{}, [2]int{64, 1})

	for i := 0; i < 5; i++ {
		if err := pool.EnsureAllocated([2]int{128, 64}, 4, 16); err != nil {
			t.Fatal(err)
		}
	}

	if dev.allocs != 6 {
		t.Fatalf("expected 6 buffer allocations; got %d", dev.allocs)
	}
	if !pool.Allocated() {
		t.Fatal("expected pool to be allocated")
	}
	if pool.Capacity() != 128*64 {
		t.Fatalf("expected capacity %d; got %d", 128*64, pool.Capacity())
	}

	type spec struct {
		name    string
		expSize int
	}
	specs := []spec{
		{"rayState", 128 * 64},
		{"queueIndex", NumQueues * 4},
		{"useQueuesFlag", 1},
		{"kernelGlobals", 128},
		{"workPool", 128 * 4},
		{"splitData", 128 * 64 * (sizeofSplitDataPerRay + 4*sizeofShaderClosure + 16)},
	}
	for index, s := range specs {
		buf, found := dev.buffers[s.name]
		if !found {
			t.Fatalf("[spec %d] buffer %s was not allocated", index, s.name)
		}
		if buf.Size() != s.expSize {
			t.Fatalf("[spec %d] expected buffer %s to be %d bytes; got %d", index, s.name, s.expSize, buf.Size())
		}
	}
}

func TestBufferPoolWithoutWorkPool(t *testing.T) {
	dev := newMockDevice(1)
	pool := NewBufferPool(dev, FixedParallelSamples{}, [2]int{64, 1})
	if err := pool.EnsureAllocated([2]int{64, 64}, 1, 16); err != nil {
		t.Fatal(err)
	}

	if _, found := dev.buffers["workPool"]; found {
		t.Fatal("expected no work pool buffer for the fixed parallel sample policy")
	}
	if pool.Buffers().WorkPool != nil {
		t.Fatal("expected a nil work pool buffer")
	}
}

func TestBufferPoolReleaseOnce(t *testing.T) {
	dev := newMockDevice(1)
	pool := NewBufferPool(dev, WorkStealing{}, [2]int{64, 1})
	if err := pool.EnsureAllocated([2]int{64, 64}, 1, 16); err != nil {
		t.Fatal(err)
	}

	pool.Release()
	pool.Release()

	for name, buf := range dev.buffers {
		if buf.released != 1 {
			t.Fatalf("expected buffer %s to be released once; got %d", name, buf.released)
		}
	}
	if pool.Allocated() {
		t.Fatal("expected pool not to be allocated after release")
	}
}

func TestBufferPoolAllocationFailure(t *testing.T) {
	dev := newMockDevice(1)
	dev.failAlloc = "rayState"
	pool := NewBufferPool(dev, WorkStealing{}, [2]int{64, 1})

	err := pool.EnsureAllocated([2]int{64, 64}, 1, 16)
	if err == nil || !strings.Contains(err.Error(), "rayState") {
		t.Fatalf("expected a rayState allocation error; got %v", err)
	}
	if pool.Allocated() {
		t.Fatal("expected pool not to be allocated")
	}
	for name, buf := range dev.buffers {
		if buf.released != 1 {
			t.Fatalf("expected partially allocated buffer %s to be released; got %d releases", name, buf.released)
		}
	}
}
