package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var keyTrail = domain.NewKey[[]string]("test.trail")

type mockExecutable struct {
	id   string
	fn   func(context.Context, domain.State) (domain.State, error)
	runs atomic.Int32
}

func (m *mockExecutable) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	m.runs.Add(1)
	if m.fn != nil {
		return m.fn(ctx, state)
	}
	return state, nil
}

func (m *mockExecutable) ID() string { return m.id }

func (m *mockExecutable) wasExecuted() bool { return m.runs.Load() > 0 }

func appendTrail(id string) func(context.Context, domain.State) (domain.State, error) {
	return func(_ context.Context, state domain.State) (domain.State, error) {
		trail, _ := domain.Get(state, keyTrail)
		return domain.With(state, keyTrail, append(trail, id)), nil
	}
}

func TestPipeline_Execute(t *testing.T) {
	t.Run("executes units in sequence", func(t *testing.T) {
		pipeline := NewPipeline("test-pipeline")
		mocks := make([]*mockExecutable, 3)
		for i := range mocks {
			id := fmt.Sprintf("unit%d", i)
			mocks[i] = &mockExecutable{id: id, fn: appendTrail(id)}
			require.NoError(t, pipeline.Add(mocks[i]))
		}

		state, err := pipeline.Execute(context.Background(), domain.NewState())
		require.NoError(t, err)

		for _, m := range mocks {
			assert.True(t, m.wasExecuted())
		}
		trail, _ := domain.Get(state, keyTrail)
		assert.Equal(t, []string{"unit0", "unit1", "unit2"}, trail)
	})

	t.Run("empty pipeline returns the input state", func(t *testing.T) {
		in := domain.With(domain.NewState(), keyTrail, []string{"seed"})
		out, err := NewPipeline("empty").Execute(context.Background(), in)
		require.NoError(t, err)
		trail, _ := domain.Get(out, keyTrail)
		assert.Equal(t, []string{"seed"}, trail)
	})

	t.Run("stops on first error", func(t *testing.T) {
		pipeline := NewPipeline("error-pipeline")
		mocks := []*mockExecutable{
			{id: "unit0", fn: appendTrail("unit0")},
			{id: "unit1", fn: func(_ context.Context, state domain.State) (domain.State, error) {
				return state, errors.New("unit1 failed")
			}},
			{id: "unit2"},
		}
		for _, m := range mocks {
			require.NoError(t, pipeline.Add(m))
		}

		state, err := pipeline.Execute(context.Background(), domain.NewState())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unit1 failed")

		var failure *StageFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, "unit1", failure.Stage)
		assert.Equal(t, 1, failure.Position)
		assert.Equal(t, "error-pipeline", failure.Pipeline)

		assert.True(t, mocks[0].wasExecuted())
		assert.True(t, mocks[1].wasExecuted())
		assert.False(t, mocks[2].wasExecuted())

		trail, _ := domain.Get(state, keyTrail)
		assert.Equal(t, []string{"unit0"}, trail, "the last good state is returned")
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		pipeline := NewPipeline("cancel-pipeline")
		m := &mockExecutable{id: "unit0"}
		require.NoError(t, pipeline.Add(m))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := pipeline.Execute(ctx, domain.NewState())
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, m.wasExecuted())
	})
}

func TestPipeline_Add(t *testing.T) {
	tests := []struct {
		name    string
		setup   func() ports.Pipeline
		exec    ports.Executable
		wantErr bool
		errMsg  string
	}{
		{
			name:  "adds executable successfully",
			setup: func() ports.Pipeline { return NewPipeline("test") },
			exec:  &mockExecutable{id: "unit1"},
		},
		{
			name:    "rejects nil executable",
			setup:   func() ports.Pipeline { return NewPipeline("test") },
			exec:    nil,
			wantErr: true,
			errMsg:  "nil executable",
		},
		{
			name: "rejects duplicate ID",
			setup: func() ports.Pipeline {
				p := NewPipeline("test")
				require.NoError(t, p.Add(&mockExecutable{id: "unit1"}))
				return p
			},
			exec:    &mockExecutable{id: "unit1"},
			wantErr: true,
			errMsg:  "already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := tt.setup()
			err := pipeline.Add(tt.exec)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Len(t, pipeline.Executables(), 1)
		})
	}
}
