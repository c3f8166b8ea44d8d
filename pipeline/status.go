package pipeline

import "fmt"

// Status is the processing state of one document as it moves through
// the pipeline.
type Status int

const (
	// StatusPending means the document has been accepted but not chunked.
	StatusPending Status = iota + 1
	// StatusChunked means chunking finished and embedding has not started.
	StatusChunked
	// StatusEmbedding means embedding calls are in flight.
	StatusEmbedding
	// StatusEmbedded means every chunk embedded successfully.
	StatusEmbedded
	// StatusPartiallyEmbedded means some chunks embedded and some failed
	// with permanent errors.
	StatusPartiallyEmbedded
	// StatusCommitted means the document's entries were written to the index.
	StatusCommitted
	// StatusFailed means the document produced nothing committable.
	StatusFailed
	// StatusSkipped means the stored content digest matched and the
	// document was left untouched.
	StatusSkipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusChunked:
		return "chunked"
	case StatusEmbedding:
		return "embedding"
	case StatusEmbedded:
		return "embedded"
	case StatusPartiallyEmbedded:
		return "partially_embedded"
	case StatusCommitted:
		return "committed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// PartialPolicy decides what happens to a document when some, but not
// all, of its chunks fail to embed.
type PartialPolicy int

const (
	// PartialCommit commits the chunks that embedded and reports the
	// rest as failed. This is the default.
	PartialCommit PartialPolicy = iota + 1
	// PartialFail marks the whole document failed and commits nothing.
	PartialFail
)

// String returns the policy name.
func (p PartialPolicy) String() string {
	switch p {
	case PartialCommit:
		return "commit-partial"
	case PartialFail:
		return "fail-document"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePartialPolicy converts a policy name to a PartialPolicy.
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch s {
	case "commit-partial":
		return PartialCommit, nil
	case "fail-document":
		return PartialFail, nil
	default:
		return 0, fmt.Errorf("unknown partial policy %q", s)
	}
}
