package directory

import "testing"

func TestBlockDirectorySizeClassAndOffsetRoundTrip(t *testing.T) {
	d := NewBlockDirectory(1, 2, 10)

	d.PutSizeClassAndOffset(3, 7, 512)
	if got := d.SizeClass(3); got != 7 {
		t.Errorf("SizeClass(3) = %d, want 7", got)
	}
	if got := d.Offset(3); got != 512 {
		t.Errorf("Offset(3) = %d, want 512", got)
	}

	d.PutOffset(3, 900)
	if got := d.Offset(3); got != 900 {
		t.Errorf("Offset(3) after PutOffset = %d, want 900", got)
	}
	if got := d.SizeClass(3); got != 7 {
		t.Errorf("SizeClass(3) after PutOffset = %d, want unchanged 7", got)
	}
}

func TestBlockDirectoryUnusedIDIsZero(t *testing.T) {
	d := NewBlockDirectory(1, 2, 10)
	if got := d.SizeClass(5); got != 0 {
		t.Errorf("SizeClass of unused id = %d, want 0", got)
	}
}

func TestBlockDirectoryDistinctRecordsDoNotAlias(t *testing.T) {
	d := NewBlockDirectory(1, 2, 10)
	d.PutSizeClassAndOffset(0, 1, 11)
	d.PutSizeClassAndOffset(1, 2, 22)
	if got := d.SizeClass(0); got != 1 {
		t.Errorf("SizeClass(0) = %d, want 1", got)
	}
	if got := d.Offset(1); got != 22 {
		t.Errorf("Offset(1) = %d, want 22", got)
	}
}

func TestBlockDirectoryUsingMem(t *testing.T) {
	d := NewBlockDirectory(1, 2, 10)
	if got := d.UsingMem(); got != 30 {
		t.Errorf("UsingMem() = %d, want 30", got)
	}
}
