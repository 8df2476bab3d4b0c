package schedule

import (
	"errors"
	"fmt"

	"classcal/internal/model"
)

// Kinds of definition problems. Test with errors.Is.
var (
	ErrMalformedTime    = errors.New("malformed time")
	ErrInvalidRange     = errors.New("invalid range")
	ErrEmptyWeekdaySet  = errors.New("empty weekday set")
	ErrWindowOutOfOrder = errors.New("window end is before window start")
)

// Problem reports a definition that was excluded from expansion.
type Problem struct {
	// Index is the definition's position in the snapshot.
	Index      int
	Definition *model.EventDefinition
	Err        error
}

func (p Problem) Error() string {
	return fmt.Sprintf("definition %d (%s): %v", p.Index, p.Definition.Label(), p.Err)
}

func (p Problem) Unwrap() error { return p.Err }

// Kind returns the sentinel this problem belongs to, or nil.
func (p Problem) Kind() error {
	for _, k := range []error{ErrMalformedTime, ErrInvalidRange, ErrEmptyWeekdaySet} {
		if errors.Is(p.Err, k) {
			return k
		}
	}
	return nil
}
