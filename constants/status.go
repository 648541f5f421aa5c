package constants

// JobStatus is the canonical status for a document verification job.
type JobStatus string

// Stable values (stored as these exact strings).
const (
	JobStatusPending     JobStatus = "PENDING"      // accepted, not yet started
	JobStatusFetching    JobStatus = "FETCHING"     // reading source bytes
	JobStatusConverting  JobStatus = "CONVERTING"   // rasterizing pages
	JobStatusRecognizing JobStatus = "RECOGNIZING"  // running text recognition
	JobStatusExtracting  JobStatus = "EXTRACTING"   // applying rule-set
	JobStatusPersisting  JobStatus = "PERSISTING"   // writing terminal record
	JobStatusComplete    JobStatus = "COMPLETE"     // terminal success
	JobStatusNeedsReview JobStatus = "NEEDS_REVIEW" // terminal, manual review required
	JobStatusFailed      JobStatus = "FAILED"       // terminal failure
)

// Terminal reports whether no further automatic transition occurs from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusComplete, JobStatusNeedsReview, JobStatusFailed:
		return true
	}
	return false
}

// forward holds the happy-path successor for each non-terminal status.
var forward = map[JobStatus]JobStatus{
	JobStatusPending:     JobStatusFetching,
	JobStatusFetching:    JobStatusConverting,
	JobStatusConverting:  JobStatusRecognizing,
	JobStatusRecognizing: JobStatusExtracting,
	JobStatusExtracting:  JobStatusPersisting,
	JobStatusPersisting:  JobStatusComplete,
}

// Next returns the happy-path successor of s, or "" for terminal states.
func (s JobStatus) Next() JobStatus {
	return forward[s]
}

// Stage identifies one pipeline phase. Used as the key for per-stage
// attempt counters.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageConvert   Stage = "convert"
	StageRecognize Stage = "recognize"
	StageExtract   Stage = "extract"
	StagePersist   Stage = "persist"
)

// stageFor maps an active status to the stage executing under it.
var stageFor = map[JobStatus]Stage{
	JobStatusFetching:    StageFetch,
	JobStatusConverting:  StageConvert,
	JobStatusRecognizing: StageRecognize,
	JobStatusExtracting:  StageExtract,
	JobStatusPersisting:  StagePersist,
}

// StageFor returns the stage that runs while a job is in status s,
// or "" when s has no stage (PENDING and terminals).
func StageFor(s JobStatus) Stage {
	return stageFor[s]
}
