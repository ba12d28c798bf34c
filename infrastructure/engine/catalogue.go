// Package engine provides ports.FitEngine implementations.
package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

// Catalogue errors.
var (
	// ErrNoRecording is returned when no recording matches the inputs
	// accumulated by an engine.
	ErrNoRecording = errors.New("no recorded fit for inputs")

	// ErrInvalidRecording is returned when a recording cannot be indexed.
	ErrInvalidRecording = errors.New("invalid recording")
)

// Recording is the fit output captured for one set of engine inputs under
// the given fit settings.
type Recording struct {
	EventID  string             `yaml:"event_id,omitempty" json:"event_id,omitempty"`
	Settings ports.FitSettings  `yaml:"settings" json:"settings"`
	Lepton   domain.Lepton      `yaml:"lepton" json:"lepton"`
	Jets     []domain.Jet       `yaml:"jets" json:"jets"`
	MET      domain.MET         `yaml:"met" json:"met"`
	Results  []domain.FitResult `yaml:"results" json:"results"`
}

type catalogueEntry struct {
	recording *Recording
	jets      int
}

// Catalogue indexes recordings by the fingerprint of their inputs. A
// recording over n jets is also reachable by every leading subset of at
// least four jets, so an engine fed a truncated jet collection still finds
// it. The catalogue is safe for concurrent use.
type Catalogue struct {
	mu      sync.RWMutex
	entries map[string]catalogueEntry
}

// NewCatalogue creates an empty Catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{entries: make(map[string]catalogueEntry)}
}

// LoadCatalogue decodes a YAML list of recordings.
func LoadCatalogue(r io.Reader) (*Catalogue, error) {
	var recordings []Recording
	if err := yaml.NewDecoder(r).Decode(&recordings); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode recordings: %w", err)
	}

	c := NewCatalogue()
	for i := range recordings {
		if err := c.Add(recordings[i]); err != nil {
			return nil, fmt.Errorf("recording %d: %w", i, err)
		}
	}
	return c, nil
}

// Add indexes rec. An exact fingerprint that is already present is replaced;
// a prefix entry never shadows an exact one.
func (c *Catalogue) Add(rec Recording) error {
	if len(rec.Jets) < domain.NumRoles {
		return fmt.Errorf("%w: %d jets, need at least %d", ErrInvalidRecording, len(rec.Jets), domain.NumRoles)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := &rec
	for n := domain.NumRoles; n <= len(rec.Jets); n++ {
		fp := Fingerprint(rec.Settings, rec.Lepton, rec.Jets[:n], rec.MET)
		if existing, ok := c.entries[fp]; ok && n < len(rec.Jets) && existing.jets == len(existing.recording.Jets) {
			continue
		}
		c.entries[fp] = catalogueEntry{recording: stored, jets: n}
	}
	return nil
}

// Len returns the number of indexed fingerprints.
func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup returns the fit results recorded for the given inputs under
// settings. Results of a longer recording that assign a role to a jet
// outside the given jets are dropped, and the rest are trimmed to the given
// jets.
func (c *Catalogue) Lookup(
	settings ports.FitSettings,
	lepton domain.Lepton,
	jets []domain.Jet,
	met domain.MET,
) ([]domain.FitResult, error) {
	fp := Fingerprint(settings, lepton, jets, met)

	c.mu.RLock()
	entry, ok := c.entries[fp]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: fingerprint %s", ErrNoRecording, fp[:12])
	}

	n := entry.jets
	results := make([]domain.FitResult, 0, len(entry.recording.Results))
	for _, res := range entry.recording.Results {
		if !rolesWithin(res.Jets, n) {
			continue
		}
		res.Jets = append([]domain.FittedJet(nil), res.Jets[:min(n, len(res.Jets))]...)
		results = append(results, res)
	}
	return results, nil
}

func rolesWithin(jets []domain.FittedJet, n int) bool {
	for i := n; i < len(jets); i++ {
		if jets[i].Type != domain.TagUnassigned {
			return false
		}
	}
	return true
}

// Fingerprint returns the hex SHA-256 digest of the fit settings and the
// engine inputs. Jet order is significant.
func Fingerprint(settings ports.FitSettings, lepton domain.Lepton, jets []domain.Jet, met domain.MET) string {
	h := sha256.New()
	writeSettings(h, settings)
	writeVector(h, lepton.P4)
	writeInt(h, int64(lepton.Charge))
	writeInt(h, int64(len(jets)))
	for _, jet := range jets {
		writeVector(h, jet.P4)
		writeFloat(h, jet.BDiscriminator)
	}
	writeVector(h, met.P4)
	return hex.EncodeToString(h.Sum(nil))
}

func writeSettings(w io.Writer, s ports.FitSettings) {
	writeFloat(w, s.WMass)
	writeFloat(w, s.TopMass)
	writeString(w, s.LeptonFlavour)
	writeInt(w, int64(len(s.Resolutions)))
	for _, kind := range slices.Sorted(maps.Keys(s.Resolutions)) {
		writeString(w, kind)
		writeString(w, s.Resolutions[kind])
	}
}

func writeString(w io.Writer, str string) {
	writeInt(w, int64(len(str)))
	_, _ = io.WriteString(w, str)
}

func writeVector(w io.Writer, v domain.FourVector) {
	for _, f := range [4]float64{v.Px, v.Py, v.Pz, v.E} {
		writeFloat(w, f)
	}
}

func writeFloat(w io.Writer, f float64) {
	writeInt(w, int64(math.Float64bits(f)))
}

func writeInt(w io.Writer, n int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	_, _ = w.Write(buf[:])
}
