// Package legal defines the closed jurisdiction and instrument-type
// taxonomy used across the corpus, plus the priority weight table that
// drives DIFC-first ranking.
package legal

import "fmt"

type Jurisdiction string

const (
	JurisdictionDIFC  Jurisdiction = "DIFC"
	JurisdictionDFSA  Jurisdiction = "DFSA"
	JurisdictionUAE   Jurisdiction = "UAE"
	JurisdictionOther Jurisdiction = "OTHER"
)

var jurisdictions = map[Jurisdiction]bool{
	JurisdictionDIFC:  true,
	JurisdictionDFSA:  true,
	JurisdictionUAE:   true,
	JurisdictionOther: true,
}

// ParseJurisdiction rejects anything outside the closed set so invalid
// values fail at the boundary instead of being silently mis-ranked.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	j := Jurisdiction(s)
	if !jurisdictions[j] {
		return "", fmt.Errorf("unknown jurisdiction %q", s)
	}
	return j, nil
}

func (j Jurisdiction) Valid() bool {
	return jurisdictions[j]
}

type InstrumentType string

const (
	InstrumentLaw        InstrumentType = "Law"
	InstrumentRegulation InstrumentType = "Regulation"
	InstrumentCourtRule  InstrumentType = "CourtRule"
	InstrumentRulebook   InstrumentType = "Rulebook"
	InstrumentNotice     InstrumentType = "Notice"
	InstrumentOther      InstrumentType = "Other"
)

var instrumentTypes = map[InstrumentType]bool{
	InstrumentLaw:        true,
	InstrumentRegulation: true,
	InstrumentCourtRule:  true,
	InstrumentRulebook:   true,
	InstrumentNotice:     true,
	InstrumentOther:      true,
}

func ParseInstrumentType(s string) (InstrumentType, error) {
	it := InstrumentType(s)
	if !instrumentTypes[it] {
		return "", fmt.Errorf("unknown instrument type %q", s)
	}
	return it, nil
}

func (it InstrumentType) Valid() bool {
	return instrumentTypes[it]
}

// WeightKey identifies a jurisdiction/instrument pair for weight overrides.
type WeightKey struct {
	Jurisdiction   Jurisdiction
	InstrumentType InstrumentType
}

// WeightTable maps a chunk's provenance to a ranking multiplier.
// Overrides win over the per-jurisdiction entries; Fallback covers
// anything not listed. The table is read-only after construction and
// is passed explicitly to the retriever, never read from globals.
type WeightTable struct {
	Jurisdictions map[Jurisdiction]float64
	Overrides     map[WeightKey]float64
	Fallback      float64
}

// DefaultWeights encodes the DIFC-first policy: DIFC primary sources
// outrank equally-similar non-DIFC material.
func DefaultWeights() WeightTable {
	return WeightTable{
		Jurisdictions: map[Jurisdiction]float64{
			JurisdictionDIFC:  1.0,
			JurisdictionDFSA:  0.9,
			JurisdictionUAE:   0.6,
			JurisdictionOther: 0.4,
		},
		Overrides: map[WeightKey]float64{
			{JurisdictionDIFC, InstrumentCourtRule}: 0.8,
		},
		Fallback: 0.4,
	}
}

func (t WeightTable) Weight(j Jurisdiction, it InstrumentType) float64 {
	if w, ok := t.Overrides[WeightKey{j, it}]; ok {
		return w
	}
	if w, ok := t.Jurisdictions[j]; ok {
		return w
	}
	return t.Fallback
}
