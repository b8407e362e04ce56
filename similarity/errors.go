package similarity

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecsim/table"
)

var (
	// ErrInvalidTable is returned when the input is not a usable feature
	// table: nil, ragged, missing its id column, or with null/duplicate ids.
	ErrInvalidTable = errors.New("invalid feature table")

	// ErrValidation is the class of data-quality errors found at
	// construction (nulls, non-numeric feature columns).
	ErrValidation = table.ErrValidation
)

// NullValuesError reports nulls found in a feature column.
type NullValuesError = table.NullValuesError

// NonNumericColumnError reports a feature column that is neither int nor
// float. String columns are rejected even when their text looks numeric.
type NonNumericColumnError struct {
	Column string
	Kind   table.Kind
}

func (e *NonNumericColumnError) Error() string {
	return fmt.Sprintf("feature column %q is %s, only int and float columns are allowed", e.Column, e.Kind)
}

// Is makes NonNumericColumnError match ErrValidation.
func (e *NonNumericColumnError) Is(target error) bool { return target == ErrValidation }

// ErrMatrixShape is returned when labels and matrix dimensions disagree.
var ErrMatrixShape = errors.New("labels do not match matrix dimensions")
