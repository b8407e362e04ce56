package vecsim

import (
	"errors"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/edges"
	"github.com/hupe1980/vecsim/rank"
	"github.com/hupe1980/vecsim/similarity"
	"github.com/hupe1980/vecsim/table"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrNotFound is returned when an entity id is not in the table.
	ErrNotFound = errors.New("not found")

	// ErrValidation matches null-value and non-numeric-column errors.
	ErrValidation = table.ErrValidation
	// ErrInvalidTable matches structurally invalid inputs (missing id column,
	// duplicate ids).
	ErrInvalidTable = similarity.ErrInvalidTable
	// ErrUnsupportedMetric matches unknown metric selectors.
	ErrUnsupportedMetric = distance.ErrUnsupportedMetric
	// ErrNonOrderableScore matches NaN scores during ranking.
	ErrNonOrderableScore = rank.ErrNonOrderableScore
	// ErrIncompleteEdgeList matches edge lists that cannot be pivoted back.
	ErrIncompleteEdgeList = edges.ErrIncompleteEdgeList
)

// StageError records which pipeline stage failed.
//
// The underlying error can be accessed via errors.Unwrap.
type StageError struct {
	Stage string
	cause error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.cause.Error() }

func (e *StageError) Unwrap() error { return e.cause }

func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, cause: err}
}
