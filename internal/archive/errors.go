package archive

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrUnsupportedFormat indicates the artifact matches no known archive kind.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// UnsafePathError indicates a member path that would escape the output
// directory. The member is never written.
type UnsafePathError struct {
	Member string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("unsafe member path: %s", e.Member)
}

// PartialError indicates that some members failed to extract. Extracted
// carries the count of members that were written successfully; Err
// aggregates the per-member failures.
type PartialError struct {
	Extracted int
	Err       *multierror.Error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partial extraction: %d members extracted, %d failed: %v",
		e.Extracted, e.Err.Len(), e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}
