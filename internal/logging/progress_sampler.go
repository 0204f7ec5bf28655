package logging

// ProgressSampler limits run progress logging on non-terminal outputs. It
// emits for the first and last item and whenever the completed percentage
// crosses into a new bucket.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percent (default 10).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether progress at processed/total should be logged. A
// nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(processed, total int) bool {
	if s == nil || total <= 0 {
		return true
	}
	if processed >= total {
		s.lastBucket = int(100 / s.bucketSize)
		return true
	}
	percent := float64(processed) * 100 / float64(total)
	bucket := int(percent / s.bucketSize)
	if processed <= 1 || bucket > s.lastBucket {
		s.lastBucket = max(bucket, s.lastBucket)
		return true
	}
	return false
}

// Reset clears the sampler state for a new run.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
}
