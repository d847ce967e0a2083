package engineconfig

import "testing"

func TestDefaultMatchesOriginalDefaults(t *testing.T) {
	c := Default()
	if c.Copy != FullSlot {
		t.Errorf("Copy = %v, want FullSlot", c.Copy)
	}
	if c.Class.Exact {
		t.Error("Class.Exact = true, want geometric by default")
	}
	if c.Heuristics == nil {
		t.Fatal("Heuristics = nil, want enabled by default")
	}
	if c.Heuristics.PoolThreshold != 16 {
		t.Errorf("PoolThreshold = %d, want 16", c.Heuristics.PoolThreshold)
	}
	if c.Heuristics.GarbageMax != 6 {
		t.Errorf("GarbageMax = %d, want 6", c.Heuristics.GarbageMax)
	}
	if c.Heuristics.ExtraRateNum != 9 || c.Heuristics.ExtraRateDen != 8 {
		t.Errorf("ExtraRate = %d/%d, want 9/8", c.Heuristics.ExtraRateNum, c.Heuristics.ExtraRateDen)
	}
}

func TestGeometricClassesDefaults(t *testing.T) {
	c := GeometricClasses()
	if c.K != 0.1232 {
		t.Errorf("K = %v, want 0.1232", c.K)
	}
	if c.Max != 128 {
		t.Errorf("Max = %d, want 128", c.Max)
	}
	if c.BinarySearchIters != 7 {
		t.Errorf("BinarySearchIters = %d, want 7", c.BinarySearchIters)
	}
}

func TestExactClasses(t *testing.T) {
	c := ExactClasses(8)
	if !c.Exact || c.Align != 8 {
		t.Errorf("ExactClasses(8) = %+v, want Exact=true Align=8", c)
	}
}
