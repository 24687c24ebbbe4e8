// Package experiment models immutable A/B experiment definitions.
// A Definition is validated and its weights normalized exactly once, in New;
// after that it is safe to share between goroutines.
package experiment

import (
	"fmt"
	"math"
	"regexp"
)

const (
	// DefaultWeight applies to variants that omit a weight.
	DefaultWeight = 50

	// TotalWeight is the scale weights are normalized to.
	TotalWeight = 100

	// MaxWeight bounds a single raw weight so that sums cannot overflow.
	MaxWeight = math.MaxInt32
)

// IDPattern constrains experiment and variant ids. The same pattern is used to
// reject tampered values read back from session state.
var IDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config is the raw, caller-supplied description of an experiment.
type Config struct {
	ID       string          `json:"id"`
	Variants []VariantConfig `json:"variants"`
}

// VariantConfig describes one variant before normalization.
type VariantConfig struct {
	ID string `json:"id"`

	// Weight is the relative share. Nil means DefaultWeight.
	Weight *int `json:"weight,omitempty"`

	// EntityID identifies the renderable entity backing this variant.
	// Events are tracked against it, so it is mandatory.
	EntityID string `json:"entity_id"`
}

// Variant is a normalized, read-only variant.
type Variant struct {
	ID        string `json:"id"`
	Weight    int    `json:"weight"`
	RawWeight int    `json:"raw_weight"`
	EntityID  string `json:"entity_id"`
}

// Definition is an immutable experiment with normalized weights.
type Definition struct {
	id       string
	variants []Variant
	index    map[string]int
}

// New validates cfg and builds a Definition.
//
// Weights whose sum differs from 100 are rescaled to round(w*100/sum).
// Rounding drift is accepted: the result may sum to 100 ± (len(variants)-1).
func New(cfg Config) (*Definition, error) {
	if cfg.ID == "" {
		return nil, configErr("id", "must not be empty")
	}
	if !IDPattern.MatchString(cfg.ID) {
		return nil, configErr("id", "%q must match %s", cfg.ID, IDPattern)
	}
	if len(cfg.Variants) == 0 {
		return nil, configErr("variants", "at least one variant is required")
	}

	variants := make([]Variant, len(cfg.Variants))
	index := make(map[string]int, len(cfg.Variants))
	sum := 0

	for i, vc := range cfg.Variants {
		field := fmt.Sprintf("variants[%d]", i)

		if !IDPattern.MatchString(vc.ID) {
			return nil, configErr(field+".id", "%q must match %s", vc.ID, IDPattern)
		}
		if _, dup := index[vc.ID]; dup {
			return nil, configErr(field+".id", "duplicate variant %q", vc.ID)
		}
		if vc.EntityID == "" {
			return nil, configErr(field+".entity_id", "variant %q has no backing entity", vc.ID)
		}

		weight := DefaultWeight
		if vc.Weight != nil {
			weight = *vc.Weight
		}
		if weight < 0 {
			return nil, configErr(field+".weight", "must be non-negative, got %d", weight)
		}
		if weight > MaxWeight {
			return nil, configErr(field+".weight", "must not exceed %d, got %d", MaxWeight, weight)
		}
		if sum > math.MaxInt-weight {
			return nil, configErr("variants", "weights sum overflows")
		}

		variants[i] = Variant{ID: vc.ID, Weight: weight, RawWeight: weight, EntityID: vc.EntityID}
		index[vc.ID] = i
		sum += weight
	}

	if sum == 0 {
		return nil, configErr("variants", "weights sum to zero")
	}

	normalize(variants, sum)

	return &Definition{id: cfg.ID, variants: variants, index: index}, nil
}

// normalize rescales weights in place so they approximately sum to TotalWeight.
func normalize(variants []Variant, sum int) {
	if sum == TotalWeight {
		return
	}
	for i := range variants {
		variants[i].Weight = int(math.Round(float64(variants[i].RawWeight) * TotalWeight / float64(sum)))
	}
}

// MustNew is like New but panics on error. Intended for tests and static setups.
func MustNew(cfg Config) *Definition {
	d, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

// ID returns the experiment id.
func (d *Definition) ID() string {
	return d.id
}

// Variants returns a copy of the normalized variants in declared order.
func (d *Definition) Variants() []Variant {
	out := make([]Variant, len(d.variants))
	copy(out, d.variants)
	return out
}

// Len returns the number of variants.
func (d *Definition) Len() int {
	return len(d.variants)
}

// At returns the i-th variant in declared order.
func (d *Definition) At(i int) Variant {
	return d.variants[i]
}

// Variant looks up a variant by id.
func (d *Definition) Variant(id string) (Variant, bool) {
	i, ok := d.index[id]
	if !ok {
		return Variant{}, false
	}
	return d.variants[i], true
}

// Has reports whether id is a known variant.
func (d *Definition) Has(id string) bool {
	_, ok := d.index[id]
	return ok
}

// Config returns the raw configuration the definition was built from.
// Feeding it back to New yields an equivalent Definition.
func (d *Definition) Config() Config {
	cfg := Config{ID: d.id, Variants: make([]VariantConfig, len(d.variants))}
	for i, v := range d.variants {
		w := v.RawWeight
		cfg.Variants[i] = VariantConfig{ID: v.ID, Weight: &w, EntityID: v.EntityID}
	}
	return cfg
}

// TotalNormalizedWeight returns the sum of normalized weights.
func (d *Definition) TotalNormalizedWeight() int {
	total := 0
	for _, v := range d.variants {
		total += v.Weight
	}
	return total
}
