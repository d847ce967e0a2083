package directory

import "testing"

func TestPageDirectoryFieldsRoundTrip(t *testing.T) {
	d := NewPageDirectory(2, 2, 16)

	d.PutPrev(4, 3)
	d.PutNext(4, 5)
	d.PutOffset(4, 1000)
	d.PutSizeClass(4, 9)

	if got := d.Prev(4); got != 3 {
		t.Errorf("Prev(4) = %d, want 3", got)
	}
	if got := d.Next(4); got != 5 {
		t.Errorf("Next(4) = %d, want 5", got)
	}
	if got := d.Offset(4); got != 1000 {
		t.Errorf("Offset(4) = %d, want 1000", got)
	}
	if got := d.SizeClass(4); got != 9 {
		t.Errorf("SizeClass(4) = %d, want 9", got)
	}
}

func TestPageDirectoryPutAll(t *testing.T) {
	d := NewPageDirectory(2, 2, 16)

	d.PutAll(2, 10, 11, 12, 13)

	if got := d.Prev(2); got != 10 {
		t.Errorf("Prev(2) after PutAll = %d, want 10", got)
	}
	if got := d.Next(2); got != 11 {
		t.Errorf("Next(2) after PutAll = %d, want 11", got)
	}
	if got := d.Offset(2); got != 12 {
		t.Errorf("Offset(2) after PutAll = %d, want 12", got)
	}
	if got := d.SizeClass(2); got != 13 {
		t.Errorf("SizeClass(2) after PutAll = %d, want 13", got)
	}
}

func TestPageDirectoryNullPage(t *testing.T) {
	d := NewPageDirectory(1, 2, 16)
	if got := d.NullPage(); got != 255 {
		t.Errorf("NullPage() = %d, want 255 for a 1-byte page id field", got)
	}
}

func TestPageDirectoryFreeIDStackIsLIFO(t *testing.T) {
	d := NewPageDirectory(2, 2, 16)
	if _, ok := d.PopFreeID(); ok {
		t.Fatal("PopFreeID on empty stack reported ok")
	}

	d.PushFreeID(1)
	d.PushFreeID(2)
	d.PushFreeID(3)

	for _, want := range []uint64{3, 2, 1} {
		got, ok := d.PopFreeID()
		if !ok || got != want {
			t.Errorf("PopFreeID() = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if _, ok := d.PopFreeID(); ok {
		t.Error("PopFreeID after draining the stack reported ok")
	}
}
