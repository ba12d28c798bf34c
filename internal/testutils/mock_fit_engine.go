package testutils

import (
	"context"
	"sync"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ ports.FitEngine = (*MockFitEngine)(nil)

// MockFitEngine implements ports.FitEngine with scripted results. It records
// every object it receives so tests can assert on what was handed over.
type MockFitEngine struct {
	mu sync.Mutex

	// Results is returned by FitAllPermutations.
	Results []domain.FitResult
	// Err, when set, is returned by FitAllPermutations instead of Results.
	Err error
	// ErrFor, when set, is called with the number of jets added and its
	// non-nil result is returned instead of Results.
	ErrFor func(jets int) error

	leptons []domain.Lepton
	jets    []domain.Jet
	met     *domain.MET

	clearCalls int
	fitCalls   int
}

// NewMockFitEngine creates a MockFitEngine that returns results.
func NewMockFitEngine(results ...domain.FitResult) *MockFitEngine {
	return &MockFitEngine{Results: results}
}

// Clear drops the accumulated objects.
func (m *MockFitEngine) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leptons = nil
	m.jets = nil
	m.met = nil
	m.clearCalls++
}

// AddLepton records lepton.
func (m *MockFitEngine) AddLepton(lepton domain.Lepton) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leptons = append(m.leptons, lepton)
}

// AddJet records jet.
func (m *MockFitEngine) AddJet(jet domain.Jet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jets = append(m.jets, jet)
}

// SetMET records met.
func (m *MockFitEngine) SetMET(met domain.MET) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.met = &met
}

// FitAllPermutations returns the scripted results or error.
func (m *MockFitEngine) FitAllPermutations(ctx context.Context) ([]domain.FitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fitCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.ErrFor != nil {
		if err := m.ErrFor(len(m.jets)); err != nil {
			return nil, err
		}
	}
	out := make([]domain.FitResult, len(m.Results))
	copy(out, m.Results)
	return out, nil
}

// Jets returns the jets added since the last Clear.
func (m *MockFitEngine) Jets() []domain.Jet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Jet(nil), m.jets...)
}

// Leptons returns the leptons added since the last Clear.
func (m *MockFitEngine) Leptons() []domain.Lepton {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Lepton(nil), m.leptons...)
}

// MET returns the MET object set since the last Clear, if any.
func (m *MockFitEngine) MET() (domain.MET, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.met == nil {
		return domain.MET{}, false
	}
	return *m.met, true
}

// ClearCalls returns how many times Clear was called.
func (m *MockFitEngine) ClearCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearCalls
}

// FitCalls returns how many times FitAllPermutations was called.
func (m *MockFitEngine) FitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fitCalls
}
