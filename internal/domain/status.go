package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy of the engine. Only ErrUpstreamExtract is ever fatal, and
// then only to the run (global extracts) or job (branch-group inputs) that
// hit it; the others are recorded and resolved by documented substitutions.
var (
	ErrMissingJoinKey        = errors.New("missing join key")
	ErrDegenerateNumeric     = errors.New("degenerate numeric value")
	ErrUnrecoverableCategory = errors.New("unrecoverable category")
	ErrUpstreamExtract       = errors.New("upstream extract failure")
)

// SchemaError reports an extract whose header does not carry the named
// fields the engine maps by name.
type SchemaError struct {
	Extract string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s extract: schema mismatch, missing columns [%s]",
		e.Extract, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error {
	return ErrUpstreamExtract
}

// ABCClass is the profit-concentration class.
type ABCClass string

const (
	ABCA ABCClass = "A"
	ABCB ABCClass = "B"
	ABCC ABCClass = "C"
)

// ABCClasses lists the classes in tie-break order.
var ABCClasses = []ABCClass{ABCA, ABCB, ABCC}

// XYZClass is the demand-variability class.
type XYZClass string

const (
	XYZX XYZClass = "X"
	XYZY XYZClass = "Y"
	XYZZ XYZClass = "Z"
)

// XYZClasses lists the classes in tie-break order.
var XYZClasses = []XYZClass{XYZX, XYZY, XYZZ}

// Priority is the combined A-D restock tier, A being the most urgent.
type Priority string

const (
	PriorityA Priority = "A"
	PriorityB Priority = "B"
	PriorityC Priority = "C"
	PriorityD Priority = "D"
)

// Priorities lists every tier in report order.
var Priorities = []Priority{PriorityA, PriorityB, PriorityC, PriorityD}

// ParsePriority accepts a case-insensitive tier letter.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Priorities {
		if p == known {
			return p, true
		}
	}
	return "", false
}
