package profiler

import "strconv"

// SkipReason tells why a run was not saved.
type SkipReason int

const (
	SkipNone SkipReason = iota
	// SkipNoReason is returned for runs that qualify for no retention reason.
	SkipNoReason
	// SkipEmpty is returned for runs without samples.
	SkipEmpty
	// SkipStoreUnavailable is returned when the store failed.
	SkipStoreUnavailable
	// SkipNotDue is returned by Flush before the partial save interval
	// elapsed.
	SkipNotDue
	// SkipFinished is returned for runs that already had their final save.
	SkipFinished
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipNoReason:
		return "no_reason"
	case SkipEmpty:
		return "empty"
	case SkipStoreUnavailable:
		return "store_unavailable"
	case SkipNotDue:
		return "not_due"
	case SkipFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// SaveResult is the outcome of a save: either the id of the stored profile,
// or the reason it was skipped.
type SaveResult struct {
	ID   int64
	Skip SkipReason
}

func Saved(id int64) SaveResult { return SaveResult{ID: id} }

func Skipped(r SkipReason) SaveResult { return SaveResult{Skip: r} }

func (r SaveResult) IsSaved() bool { return r.Skip == SkipNone }

func (r SaveResult) String() string {
	if r.IsSaved() {
		return "saved:" + strconv.FormatInt(r.ID, 10)
	}
	return "skipped:" + r.Skip.String()
}
