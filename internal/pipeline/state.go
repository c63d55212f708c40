package pipeline

// State is the per-SKU pipeline state. Transitions are strictly
// sequential, no skipping backward:
//
//	PENDING → DOWNLOADED → EXTRACTED → CONVERTED(optional) → PROCESSED
//
// with two absorbing failure states. Processing failures are recorded
// per-image, not as a whole-SKU state: a SKU with zero successfully
// processed images still reaches PROCESSED.
type State string

const (
	StatePending        State = "PENDING"
	StateDownloaded     State = "DOWNLOADED"
	StateExtracted      State = "EXTRACTED"
	StateConverted      State = "CONVERTED"
	StateProcessed      State = "PROCESSED"
	StateDownloadFailed State = "DOWNLOAD_FAILED"
	StateExtractFailed  State = "EXTRACT_FAILED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateProcessed, StateDownloadFailed, StateExtractFailed:
		return true
	}
	return false
}

// Failed reports whether s is an absorbing failure state.
func (s State) Failed() bool {
	return s == StateDownloadFailed || s == StateExtractFailed
}

// Stage identifies one pipeline stage for event reporting.
type Stage string

const (
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageConvert  Stage = "convert"
	StageProcess  Stage = "process"
)
