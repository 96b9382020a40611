// Package tuning loads the lookup tables that shape classification and the
// scheduling scripts. Every key is optional; absent keys keep the compiled
// defaults.
package tuning

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/wolfman30/staffline/internal/classifier"
	"github.com/wolfman30/staffline/internal/confidence"
	"github.com/wolfman30/staffline/internal/normalizer"
	"github.com/wolfman30/staffline/internal/scheduling"
)

// EnvPrefix selects environment overrides. A double underscore separates
// nesting levels: STAFFLINE_TUNING_CONFIDENCE__URGENCY_BOOST.
const EnvPrefix = "STAFFLINE_TUNING_"

// Tuning groups every externalized table.
type Tuning struct {
	Timezone   string                `koanf:"timezone"`
	Dictionary normalizer.Dictionary `koanf:"dictionary"`
	Rules      []classifier.Rule     `koanf:"rules"`
	Confidence confidence.Tables     `koanf:"confidence"`
	Scripts    scheduling.Scripts    `koanf:"scripts"`
}

// Defaults returns the compiled tables.
func Defaults() *Tuning {
	return &Tuning{
		Dictionary: normalizer.DefaultDictionary(),
		Rules:      classifier.DefaultRules(),
		Confidence: confidence.DefaultTables(),
		Scripts:    scheduling.DefaultScripts(),
	}
}

// Load overlays the YAML file at path (if any) and then environment overrides
// onto Defaults. An empty path or a missing file only applies env overrides.
func Load(path string) (*Tuning, error) {
	k := koanf.New(".")
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("tuning: reading %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("tuning: accessing %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("tuning: loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("tuning: unmarshalling: %w", err)
	}
	mergeBounds(k, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded tables.
func (t *Tuning) Validate() error {
	var errs []error
	if t.Timezone != "" {
		if _, err := time.LoadLocation(t.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("tuning: timezone %q: %w", t.Timezone, err))
		}
	}
	if _, err := classifier.NewRuleMatcher(t.Rules); err != nil {
		errs = append(errs, err)
	}
	for label, b := range t.Confidence.Bounds {
		if !validBounds(b) {
			errs = append(errs, fmt.Errorf("tuning: bounds for %s must satisfy 0 <= min <= max <= 1", label))
		}
	}
	if !validBounds(t.Confidence.DefaultBounds) {
		errs = append(errs, errors.New("tuning: default_bounds must satisfy 0 <= min <= max <= 1"))
	}
	if err := t.Scripts.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validBounds(b confidence.Bounds) bool {
	return b.Min >= 0 && b.Max <= 1 && b.Min <= b.Max
}

// mergeBounds restores the fields a per-intent bounds override left out.
// Each map entry decodes into a zero Bounds, so an override that only sets
// max would otherwise drop min to 0. Missing fields come from the compiled
// bounds for the intent, or from the loaded default_bounds.
func mergeBounds(k *koanf.Koanf, t *Tuning) {
	compiled := confidence.DefaultTables().Bounds
	for label, b := range t.Confidence.Bounds {
		key := "confidence.bounds." + string(label)
		if !k.Exists(key) {
			continue
		}
		old, ok := compiled[label]
		if !ok {
			old = t.Confidence.DefaultBounds
		}
		if !k.Exists(key + ".min") {
			b.Min = old.Min
		}
		if !k.Exists(key + ".max") {
			b.Max = old.Max
		}
		t.Confidence.Bounds[label] = b
	}
}

// Normalizer builds a normalizer over the loaded dictionary.
func (t *Tuning) Normalizer() *normalizer.Normalizer {
	return normalizer.New(t.Dictionary)
}

// Matcher compiles the loaded rules.
func (t *Tuning) Matcher() (*classifier.RuleMatcher, error) {
	return classifier.NewRuleMatcher(t.Rules)
}

// Calculator builds a confidence calculator over the loaded tables.
func (t *Tuning) Calculator() *confidence.Calculator {
	return confidence.New(t.Confidence)
}
