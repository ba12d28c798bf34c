package domain

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// FourVector is a Lorentz four-momentum in (px, py, pz, E) components.
// The zero value is the empty particle used in sentinel output.
type FourVector struct {
	Px float64 `json:"px" yaml:"px"`
	Py float64 `json:"py" yaml:"py"`
	Pz float64 `json:"pz" yaml:"pz"`
	E  float64 `json:"e" yaml:"e"`
}

// NewFourVector builds a four-vector from a three-momentum and an energy.
func NewFourVector(p r3.Vec, e float64) FourVector {
	return FourVector{Px: p.X, Py: p.Y, Pz: p.Z, E: e}
}

// P returns the three-momentum.
func (v FourVector) P() r3.Vec { return r3.Vec{X: v.Px, Y: v.Py, Z: v.Pz} }

// Pt returns the momentum transverse to the beam axis.
func (v FourVector) Pt() float64 { return math.Hypot(v.Px, v.Py) }

// Mass returns the invariant mass. Space-like vectors, which only appear
// through rounding in fitted output, report a negative mass.
func (v FourVector) Mass() float64 {
	p := r3.Norm(v.P())
	m2 := v.E*v.E - p*p
	if m2 < 0 {
		return -math.Sqrt(-m2)
	}
	return math.Sqrt(m2)
}

// Add returns the component-wise sum of two four-vectors.
func (v FourVector) Add(o FourVector) FourVector {
	return NewFourVector(r3.Add(v.P(), o.P()), v.E+o.E)
}

// IsZero reports whether all components are zero.
func (v FourVector) IsZero() bool { return v == FourVector{} }
