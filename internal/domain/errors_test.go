package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateError(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		operation string
		err       error
		wantMsg   string
	}{
		{
			name:      "basic state error",
			key:       KeyEvent.Name(),
			operation: "Get",
			err:       ErrKeyNotFound,
			wantMsg:   "state error: operation=Get, key=event, err=key not found",
		},
		{
			name:      "malformed permutation",
			key:       KeyCandidates.Name(),
			operation: "Build",
			err:       ErrMalformedPermutation,
			wantMsg:   "state error: operation=Build, key=hypotheses.candidates, err=malformed permutation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStateError(tt.key, tt.operation, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error(), "Error message mismatch")
			assert.Equal(t, tt.key, err.Key, "Key mismatch")
			assert.Equal(t, tt.operation, err.Operation, "Operation mismatch")
			assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")
		})
	}
}

func TestMissingKey(t *testing.T) {
	err := MissingKey(KeyFitResults)

	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, "fit.results", err.Key)
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("ranking")
		err.AddError("max_jets must be -1 or at least 4")

		assert.Equal(t, "validation error for ranking: max_jets must be -1 or at least 4", err.Error())
		assert.True(t, err.HasErrors())
		assert.Len(t, err.Errors, 1)
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("config")
		err.AddError("missing version")
		err.AddError("missing metadata")

		assert.Equal(t, "validation errors for config: [missing version missing metadata]", err.Error())
		assert.Len(t, err.Errors, 2)
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("empty")
		assert.False(t, err.HasErrors())
	})
}
