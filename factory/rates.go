/*
Package factory converts rate documents into engine rate tables.

PURPOSE:
  Pay rules change by notification (DA revisions, budget slab changes, a
  new fitment factor). Keeping them in a YAML or JSON document lets an
  operator update the service without a code change. The factory parses
  the document, fills anything left out from the built-in defaults, and
  validates the result.

DOCUMENT SCHEMA (YAML; JSON uses the same keys):
  version: "FY2025-26"
  da_percentage: 58
  fitment_factor: 1.92
  hra:
    7th:
      X:     {rate: 0.30, floor: 5400}
      Other: {rate: 0.10, floor: 1800}
    8th:
      X:     {rate: 0.24, floor: 5400}
  nps: {employee: 0.10, employer: 0.14}
  cghs:
    steps: [{up_to: 25000, amount: 250}, {up_to: 50000, amount: 450}]
    above: 1250
  ta:
    levels: {middle_from: 3, senior_from: 9}
    tiers:
      higher: {senior: 7200, middle: 3600, junior: 1350}
      other:  {senior: 3600, middle: 1800, junior: 900}
  income_tax:
    standard_deduction: 75000
    slabs: [{up_to: 400000, rate: 0}, {rate: 0.30}]
    rebate: {income_limit: 1200000, max: 60000}
    marginal_relief_up_to: 1275000
    cess: 0.04

  Every section is optional. A section that is present replaces the
  default section as a whole (HRA classes merge per class).

USAGE:
  f := factory.NewRateFactory()
  rates, err := f.Load("rates.yaml")   // "" loads the embedded defaults
  calc := engine.NewCalculator(rates)

SEE ALSO:
  - engine/rates.go: RateTable definition and Validate
  - rates.yaml:      embedded default document
*/
package factory

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/paycalc/engine"
	"gopkg.in/yaml.v3"
)

//go:embed rates.yaml
var defaultDocument []byte

// ErrInvalidRates is returned for any document that cannot become a valid
// rate table.
var ErrInvalidRates = errors.New("invalid rates document")

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// Decimal accepts quoted or bare numbers in both YAML and JSON.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalYAML(node *yaml.Node) error {
	v, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	d.Decimal = v
	return nil
}

func (d Decimal) MarshalYAML() (any, error) {
	return d.Decimal.InexactFloat64(), nil
}

func dec(v decimal.Decimal) *Decimal {
	return &Decimal{Decimal: v}
}

// RatesDocument is the serialised form of engine.RateTable.
type RatesDocument struct {
	Version       string             `yaml:"version,omitempty" json:"version,omitempty"`
	DAPercentage  *int               `yaml:"da_percentage,omitempty" json:"da_percentage,omitempty"`
	FitmentFactor *Decimal           `yaml:"fitment_factor,omitempty" json:"fitment_factor,omitempty"`
	HRA           *HRADocument       `yaml:"hra,omitempty" json:"hra,omitempty"`
	NPS           *NPSDocument       `yaml:"nps,omitempty" json:"nps,omitempty"`
	CGHS          *CGHSDocument      `yaml:"cghs,omitempty" json:"cghs,omitempty"`
	TA            *TADocument        `yaml:"ta,omitempty" json:"ta,omitempty"`
	IncomeTax     *IncomeTaxDocument `yaml:"income_tax,omitempty" json:"income_tax,omitempty"`
}

// HRADocument holds both commission tables keyed by class name.
type HRADocument struct {
	Seventh map[string]HRABandDocument `yaml:"7th,omitempty" json:"7th,omitempty"`
	Eighth  map[string]HRABandDocument `yaml:"8th,omitempty" json:"8th,omitempty"`
}

type HRABandDocument struct {
	Rate  Decimal `yaml:"rate" json:"rate"`
	Floor int64   `yaml:"floor" json:"floor"`
}

type NPSDocument struct {
	Employee Decimal `yaml:"employee" json:"employee"`
	Employer Decimal `yaml:"employer" json:"employer"`
}

type CGHSDocument struct {
	Steps []CGHSStepDocument `yaml:"steps" json:"steps"`
	Above int64              `yaml:"above" json:"above"`
}

type CGHSStepDocument struct {
	UpTo   int64 `yaml:"up_to" json:"up_to"`
	Amount int64 `yaml:"amount" json:"amount"`
}

type TADocument struct {
	Levels *TALevelsDocument         `yaml:"levels,omitempty" json:"levels,omitempty"`
	Tiers  map[string]TABandDocument `yaml:"tiers,omitempty" json:"tiers,omitempty"`
}

type TALevelsDocument struct {
	MiddleFrom int `yaml:"middle_from" json:"middle_from"`
	SeniorFrom int `yaml:"senior_from" json:"senior_from"`
}

type TABandDocument struct {
	Senior int64 `yaml:"senior" json:"senior"`
	Middle int64 `yaml:"middle" json:"middle"`
	Junior int64 `yaml:"junior" json:"junior"`
}

type IncomeTaxDocument struct {
	StandardDeduction  int64             `yaml:"standard_deduction" json:"standard_deduction"`
	Slabs              []TaxSlabDocument `yaml:"slabs" json:"slabs"`
	Rebate             RebateDocument    `yaml:"rebate" json:"rebate"`
	MarginalReliefUpTo int64             `yaml:"marginal_relief_up_to" json:"marginal_relief_up_to"`
	Cess               Decimal           `yaml:"cess" json:"cess"`
}

// TaxSlabDocument leaves up_to out (or 0) for the open top slab.
type TaxSlabDocument struct {
	UpTo int64   `yaml:"up_to,omitempty" json:"up_to,omitempty"`
	Rate Decimal `yaml:"rate" json:"rate"`
}

type RebateDocument struct {
	IncomeLimit int64 `yaml:"income_limit" json:"income_limit"`
	Max         int64 `yaml:"max" json:"max"`
}

// =============================================================================
// RATE FACTORY
// =============================================================================

// RateFactory converts rate documents to engine.RateTable.
type RateFactory struct{}

// NewRateFactory creates a new rate factory.
func NewRateFactory() *RateFactory {
	return &RateFactory{}
}

// Load reads a rate document from disk. The format follows the extension
// (.json, otherwise YAML). An empty path loads the embedded defaults.
func (f *RateFactory) Load(path string) (engine.RateTable, error) {
	if path == "" {
		return f.ParseYAML(defaultDocument)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.RateTable{}, fmt.Errorf("failed to read rates file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return f.ParseJSON(data)
	}
	return f.ParseYAML(data)
}

// ParseYAML parses a YAML rate document.
func (f *RateFactory) ParseYAML(data []byte) (engine.RateTable, error) {
	var doc RatesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return engine.RateTable{}, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidRates, err)
	}
	return f.FromDocument(doc)
}

// ParseJSON parses a JSON rate document.
func (f *RateFactory) ParseJSON(data []byte) (engine.RateTable, error) {
	var doc RatesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return engine.RateTable{}, fmt.Errorf("%w: failed to parse JSON: %v", ErrInvalidRates, err)
	}
	return f.FromDocument(doc)
}

// FromDocument overlays doc on the engine defaults and validates the result.
func (f *RateFactory) FromDocument(doc RatesDocument) (engine.RateTable, error) {
	rt := engine.DefaultRates()

	if doc.DAPercentage != nil {
		rt.DAPercentage = *doc.DAPercentage
	}
	if doc.FitmentFactor != nil {
		rt.FitmentFactor = doc.FitmentFactor.Decimal
	}

	if doc.HRA != nil {
		if err := mergeHRA(rt.HRA7th, doc.HRA.Seventh); err != nil {
			return engine.RateTable{}, err
		}
		if err := mergeHRA(rt.HRA8th, doc.HRA.Eighth); err != nil {
			return engine.RateTable{}, err
		}
	}

	if doc.NPS != nil {
		rt.NPSEmployeeRate = doc.NPS.Employee.Decimal
		rt.NPSEmployerRate = doc.NPS.Employer.Decimal
	}

	if doc.CGHS != nil {
		rt.CGHSSteps = make([]engine.CGHSStep, 0, len(doc.CGHS.Steps))
		for _, s := range doc.CGHS.Steps {
			rt.CGHSSteps = append(rt.CGHSSteps, engine.CGHSStep{UpTo: s.UpTo, Amount: s.Amount})
		}
		rt.CGHSAbove = doc.CGHS.Above
	}

	if doc.TA != nil {
		if doc.TA.Levels != nil {
			rt.TALevels = engine.TALevels{MiddleFrom: doc.TA.Levels.MiddleFrom, SeniorFrom: doc.TA.Levels.SeniorFrom}
		}
		for name, band := range doc.TA.Tiers {
			tier := engine.ParseTACityType(name)
			if tier == engine.TACityUnset || tier == engine.TACityNone {
				return engine.RateTable{}, fmt.Errorf("%w: unknown TA tier %q", ErrInvalidRates, name)
			}
			rt.TA[tier] = engine.TABand{Senior: band.Senior, Middle: band.Middle, Junior: band.Junior}
		}
	}

	if doc.IncomeTax != nil {
		it := doc.IncomeTax
		rules := engine.TaxRules{
			StandardDeduction: it.StandardDeduction,
			RebateIncomeLimit: it.Rebate.IncomeLimit,
			RebateMax:         it.Rebate.Max,
			ReliefUpTo:        it.MarginalReliefUpTo,
			CessRate:          it.Cess.Decimal,
		}
		for _, s := range it.Slabs {
			rules.Slabs = append(rules.Slabs, engine.TaxSlab{UpTo: s.UpTo, Rate: s.Rate.Decimal})
		}
		rt.Tax = rules
	}

	if err := rt.Validate(); err != nil {
		return engine.RateTable{}, fmt.Errorf("%w: %w", ErrInvalidRates, err)
	}
	return rt, nil
}

func mergeHRA(table map[engine.HRAClass]engine.HRABand, doc map[string]HRABandDocument) error {
	for name, band := range doc {
		class := engine.ParseHRAClass(name)
		if class == engine.HRAClassUnset {
			return fmt.Errorf("%w: unknown HRA class %q", ErrInvalidRates, name)
		}
		table[class] = engine.HRABand{Rate: band.Rate.Decimal, Floor: band.Floor}
	}
	return nil
}

// ToDocument converts a rate table back to its document form.
func (f *RateFactory) ToDocument(rt engine.RateTable, version string) RatesDocument {
	da := rt.DAPercentage
	doc := RatesDocument{
		Version:       version,
		DAPercentage:  &da,
		FitmentFactor: dec(rt.FitmentFactor),
		HRA: &HRADocument{
			Seventh: hraDocument(rt.HRA7th),
			Eighth:  hraDocument(rt.HRA8th),
		},
		NPS:  &NPSDocument{Employee: *dec(rt.NPSEmployeeRate), Employer: *dec(rt.NPSEmployerRate)},
		CGHS: &CGHSDocument{Above: rt.CGHSAbove},
		TA: &TADocument{
			Levels: &TALevelsDocument{MiddleFrom: rt.TALevels.MiddleFrom, SeniorFrom: rt.TALevels.SeniorFrom},
			Tiers:  make(map[string]TABandDocument),
		},
		IncomeTax: &IncomeTaxDocument{
			StandardDeduction:  rt.Tax.StandardDeduction,
			Rebate:             RebateDocument{IncomeLimit: rt.Tax.RebateIncomeLimit, Max: rt.Tax.RebateMax},
			MarginalReliefUpTo: rt.Tax.ReliefUpTo,
			Cess:               *dec(rt.Tax.CessRate),
		},
	}
	for _, s := range rt.CGHSSteps {
		doc.CGHS.Steps = append(doc.CGHS.Steps, CGHSStepDocument{UpTo: s.UpTo, Amount: s.Amount})
	}
	for tier, band := range rt.TA {
		if tier == engine.TACityNone {
			continue
		}
		doc.TA.Tiers[string(tier)] = TABandDocument{Senior: band.Senior, Middle: band.Middle, Junior: band.Junior}
	}
	for _, s := range rt.Tax.Slabs {
		doc.IncomeTax.Slabs = append(doc.IncomeTax.Slabs, TaxSlabDocument{UpTo: s.UpTo, Rate: *dec(s.Rate)})
	}
	return doc
}

func hraDocument(table map[engine.HRAClass]engine.HRABand) map[string]HRABandDocument {
	out := make(map[string]HRABandDocument, len(table))
	for class, band := range table {
		out[string(class)] = HRABandDocument{Rate: *dec(band.Rate), Floor: band.Floor}
	}
	return out
}
