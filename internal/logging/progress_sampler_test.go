package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	var logged []int
	for processed := 1; processed <= 20; processed++ {
		if s.ShouldLog(processed, 20) {
			logged = append(logged, processed)
		}
	}
	want := []int{1, 5, 10, 15, 20}
	if len(logged) != len(want) {
		t.Fatalf("logged = %v, want %v", logged, want)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Fatalf("logged = %v, want %v", logged, want)
		}
	}
}

func TestProgressSamplerDefaultsAndNil(t *testing.T) {
	if s := NewProgressSampler(0); s.bucketSize != 10 {
		t.Fatalf("bucketSize = %v, want 10", s.bucketSize)
	}
	var s *ProgressSampler
	if !s.ShouldLog(3, 10) {
		t.Fatal("nil sampler should always log")
	}
	s.Reset()
	if !NewProgressSampler(5).ShouldLog(0, 0) {
		t.Fatal("unknown total should log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(50)
	s.ShouldLog(1, 4)
	s.ShouldLog(2, 4)
	if s.ShouldLog(3, 4) {
		t.Fatal("75% should stay in the 50% bucket")
	}
	s.Reset()
	if !s.ShouldLog(3, 4) {
		t.Fatal("expected log after reset")
	}
}
