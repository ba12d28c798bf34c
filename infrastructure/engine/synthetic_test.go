package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/hitrank/internal/domain"
)

func TestGenerateSynthetic(t *testing.T) {
	opts := DefaultSyntheticOptions()
	opts.Events = 50
	events, recordings := GenerateSynthetic(opts)
	require.Len(t, events, 50)

	short := 0
	for _, ev := range events {
		if len(ev.Jets) < domain.NumRoles {
			short++
		}
		require.Len(t, ev.Leptons, 1)
		require.Len(t, ev.METs, 1)
		for i := 1; i < len(ev.Jets); i++ {
			assert.GreaterOrEqual(t, ev.Jets[i-1].P4.Pt(), ev.Jets[i].P4.Pt())
		}
	}
	assert.Len(t, recordings, 50-short)

	for _, rec := range recordings {
		n := min(opts.FittedJets, len(rec.Jets))
		assert.Len(t, rec.Results, n*(n-1)/2*(n-2)*(n-3), rec.EventID)

		for _, res := range rec.Results {
			seen := map[int]int{}
			for i, j := range res.Jets {
				if j.Type != domain.TagUnassigned {
					seen[j.Type]++
					assert.Less(t, i, n)
				}
			}
			assert.Len(t, seen, domain.NumRoles)
			for _, c := range seen {
				assert.Equal(t, 1, c)
			}
		}
	}
}

func TestGenerateSynthetic_Deterministic(t *testing.T) {
	opts := DefaultSyntheticOptions()
	opts.Events = 5

	e1, r1 := GenerateSynthetic(opts)
	e2, r2 := GenerateSynthetic(opts)
	assert.Equal(t, e1, e2)
	assert.Equal(t, r1, r2)

	opts.Seed++
	e3, _ := GenerateSynthetic(opts)
	assert.NotEqual(t, e1, e3)
}

func TestGenerateSynthetic_Replayable(t *testing.T) {
	opts := DefaultSyntheticOptions()
	opts.Events = 20
	opts.ShortEvents = 0
	opts.Settings = testSettings
	events, recordings := GenerateSynthetic(opts)

	c := NewCatalogue()
	for _, rec := range recordings {
		require.NoError(t, c.Add(rec))
	}

	e := NewReplayEngine(c, testSettings)
	for _, ev := range events {
		e.Clear()
		e.AddLepton(ev.Leptons[0])
		for _, j := range ev.Jets {
			e.AddJet(j)
		}
		e.SetMET(ev.METs[0])

		results, err := e.FitAllPermutations(context.Background())
		require.NoError(t, err, ev.ID)
		assert.NotEmpty(t, results)
	}
}
