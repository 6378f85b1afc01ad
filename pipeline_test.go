package tutaexport

import "testing"

func TestPipelineSummary_RecordedCountsAreDistinct(t *testing.T) {
	var s pipelineSummary
	s.recordExported()
	s.recordExported()
	s.recordSkipped()
	s.recordFailure("mail-1", "boom")

	got := s.snapshot()
	if got.Exported != 2 {
		t.Errorf("Exported = %d, want 2", got.Exported)
	}
	if got.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", got.Skipped)
	}
	if got.Failed != 1 {
		t.Errorf("Failed = %d, want 1", got.Failed)
	}
	if len(got.FailedReasons) != 1 {
		t.Errorf("FailedReasons = %v, want 1 entry", got.FailedReasons)
	}
}
