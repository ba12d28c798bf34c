package domain

// Jet is a reconstructed jet handed to the fit engine.
type Jet struct {
	P4 FourVector `json:"p4" yaml:"p4"`
	// BDiscriminator is passed through to the engine untouched.
	BDiscriminator float64 `json:"b_discriminator,omitempty" yaml:"b_discriminator,omitempty"`
}

// Lepton is a charged-lepton candidate.
type Lepton struct {
	P4     FourVector `json:"p4" yaml:"p4"`
	Charge int        `json:"charge" yaml:"charge"`
}

// MET is a missing transverse energy object.
type MET struct {
	P4 FourVector `json:"p4" yaml:"p4"`
}

// Event is the read-only input snapshot of one collision event. Only the
// first lepton and the first MET object are used.
type Event struct {
	ID      string   `json:"id" yaml:"id"`
	Jets    []Jet    `json:"jets" yaml:"jets"`
	Leptons []Lepton `json:"leptons" yaml:"leptons"`
	METs    []MET    `json:"mets" yaml:"mets"`
}

// FittedJet is one jet of a fitted permutation together with the type tag
// the engine assigned to it. Its position in FitResult.Jets is the index of
// the jet in the collection that was added to the engine.
type FittedJet struct {
	P4   FourVector `json:"p4" yaml:"p4"`
	Type int        `json:"type" yaml:"type"`
}

// FitResult is the engine output for a single jet permutation.
type FitResult struct {
	// Chi2 is the fit cost. A non-positive value signals that the fit did not
	// converge.
	Chi2         float64     `json:"chi2" yaml:"chi2"`
	Jets         []FittedJet `json:"jets" yaml:"jets"`
	Lepton       FourVector  `json:"lepton" yaml:"lepton"`
	MET          FourVector  `json:"met" yaml:"met"`
	TopMass      float64     `json:"mt" yaml:"mt"`
	TopMassSigma float64     `json:"sigmt" yaml:"sigmt"`
	// Permutation is the engine's string encoding of the jet roles. It is
	// opaque here and only carried through.
	Permutation string `json:"permutation,omitempty" yaml:"permutation,omitempty"`
}
