package bitcodec

import "testing"

func TestRequiredBytes(t *testing.T) {
	tests := []struct {
		name string
		n    uint64
		want int
	}{
		{"zero treated as two", 0, 1},
		{"one treated as two", 1, 1},
		{"two values", 2, 1},
		{"256 values", 256, 1},
		{"257 values needs two bytes", 257, 2},
		{"65536 values fits two bytes", 65536, 2},
		{"huge bound", 1 << 40, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequiredBytes(tt.n); got != tt.want {
				t.Errorf("RequiredBytes(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		size, align, want int
	}{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{4095, 4096, 4096},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.size, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.size, tt.align, got, tt.want)
		}
	}
}

func TestReadWriteUintRoundTrip(t *testing.T) {
	for width := 1; width <= 8; width++ {
		c := New(width)
		buf := make([]byte, width)
		for _, v := range []uint64{0, 1, c.MaxValue()} {
			c.WriteUint(buf, v)
			if got := c.ReadUint(buf); got != v {
				t.Errorf("width %d: round trip of %d got %d", width, v, got)
			}
		}
	}
}

func TestWidthFastPathsMatchGenericLoop(t *testing.T) {
	// Widths 1-4 have hand-unrolled fast paths, while the generic loop used
	// for widths 5-8 produces a plain big-endian encoding; check the width-4
	// fast path against a manually computed big-endian encoding.
	buf := []byte{0x12, 0x34, 0x56, 0x78}
	c := New(4)
	want := uint64(0x12345678)
	if got := c.ReadUint(buf); got != want {
		t.Errorf("ReadUint(width=4) = 0x%x, want 0x%x", got, want)
	}
	out := make([]byte, 4)
	c.WriteUint(out, want)
	for i, b := range buf {
		if out[i] != b {
			t.Errorf("WriteUint(width=4) byte %d = 0x%x, want 0x%x", i, out[i], b)
		}
	}
}

func TestNewPanicsOutOfRange(t *testing.T) {
	for _, width := range []int{0, 9, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("New(%d) did not panic", width)
				}
			}()
			New(width)
		}()
	}
}
