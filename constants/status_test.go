package constants

import "testing"

func TestHappyPathOrder(t *testing.T) {
	want := []JobStatus{
		JobStatusPending, JobStatusFetching, JobStatusConverting,
		JobStatusRecognizing, JobStatusExtracting, JobStatusPersisting,
		JobStatusComplete,
	}
	s := JobStatusPending
	for i := 1; i < len(want); i++ {
		s = s.Next()
		if s != want[i] {
			t.Fatalf("step %d = %s, want %s", i, s, want[i])
		}
	}
	if s.Next() != "" {
		t.Errorf("terminal state has a successor: %s", s.Next())
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobStatusComplete, JobStatusNeedsReview, JobStatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobStatusPending, JobStatusFetching, JobStatusPersisting} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStageFor(t *testing.T) {
	if StageFor(JobStatusFetching) != StageFetch {
		t.Error("fetching maps to fetch stage")
	}
	if StageFor(JobStatusPending) != "" || StageFor(JobStatusComplete) != "" {
		t.Error("pending and terminal states have no stage")
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		data []byte
		want Format
	}{
		{[]byte("%PDF-1.7 ..."), PDF},
		{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, IMAGE},
		{[]byte{0xFF, 0xD8, 0xFF, 0xE0}, IMAGE},
		{[]byte("GIF89a"), ""},
		{nil, ""},
	}
	for _, c := range cases {
		if got := DetectFormat(c.data); got != c.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", c.data, got, c.want)
		}
	}
}

func TestImageExt(t *testing.T) {
	if got := ImageExt([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}); got != ".png" {
		t.Errorf("png ext = %s", got)
	}
	if got := ImageExt([]byte{0xFF, 0xD8, 0xFF}); got != ".jpg" {
		t.Errorf("jpeg ext = %s", got)
	}
}
