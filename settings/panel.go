// Package settings is the toy's control panel: a handful of named boolean and
// numeric values that feed shader uniforms and are mirrored into the location
// query string.
package settings

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/richinsley/cameratoy/location"
)

// Kind is the value type of a setting.
type Kind int

const (
	Boolean Kind = iota
	Numeric
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "boolean"
	case Numeric:
		return "numeric"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Setting is a single named control. Boolean values are stored as 0 or 1.
type Setting struct {
	Name    string
	Label   string
	Kind    Kind
	Value   float64
	Default float64
	// Range and granularity of numeric settings. HasRange is false when the
	// control declared no min/max.
	Min, Max float64
	HasRange bool
	Step     float64
}

// Bool returns the value of a boolean setting.
func (s *Setting) Bool() bool {
	return s.Value != 0
}

// Text is the query string form of the value.
func (s *Setting) Text() string {
	if s.Kind == Boolean {
		return strconv.FormatBool(s.Bool())
	}
	return strconv.FormatFloat(s.Value, 'f', -1, 64)
}

func (s *Setting) parse(text string) float64 {
	if s.Kind == Boolean {
		if text == "true" {
			return 1
		}
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return s.Default
	}
	return s.clamp(v)
}

func (s *Setting) clamp(v float64) float64 {
	if !s.HasRange {
		return v
	}
	return math.Max(s.Min, math.Min(s.Max, v))
}

// Panel owns the settings, in panel order.
type Panel struct {
	settings []*Setting
	byName   map[string]*Setting
	location *location.Location
	throttle *Throttle
}

// NewPanel builds the settings described by controls and restores their
// values from the query string of loc. Saves go through throttle. loc and
// throttle may be nil, in which case nothing is restored or saved.
func NewPanel(controls []Control, loc *location.Location, throttle *Throttle) (*Panel, error) {
	p := &Panel{
		byName:   make(map[string]*Setting, len(controls)),
		location: loc,
		throttle: throttle,
	}
	for _, c := range controls {
		s, err := newSetting(c)
		if err != nil {
			return nil, err
		}
		if _, dup := p.byName[s.Name]; dup {
			return nil, &ConfigError{Setting: s.Name, Type: c.Type, Reason: "duplicate setting name"}
		}
		p.settings = append(p.settings, s)
		p.byName[s.Name] = s
	}
	if loc != nil {
		p.Restore(loc.Query())
	}
	return p, nil
}

func newSetting(c Control) (*Setting, error) {
	if c.Setting == "" {
		return nil, &ConfigError{Type: c.Type, Reason: "missing setting name"}
	}
	kind, err := kindOf(c)
	if err != nil {
		return nil, err
	}
	s := &Setting{Name: c.Setting, Label: c.Label, Kind: kind}
	if s.Label == "" {
		s.Label = c.Setting
	}
	if kind == Boolean {
		if c.Checked {
			s.Default = 1
		}
		s.Value = s.Default
		return s, nil
	}

	s.Step = c.Step
	if s.Step <= 0 {
		s.Step = 1
	}
	if c.Min != nil && c.Max != nil {
		if *c.Min > *c.Max {
			return nil, &ConfigError{Setting: c.Setting, Type: c.Type, Reason: "min is greater than max"}
		}
		s.Min, s.Max, s.HasRange = *c.Min, *c.Max, true
	}
	s.Default = s.clamp(c.Value)
	s.Value = s.Default
	return s, nil
}

// Settings returns the settings in panel order.
func (p *Panel) Settings() []*Setting {
	return p.settings
}

// Get returns the named setting, or nil.
func (p *Panel) Get(name string) *Setting {
	return p.byName[name]
}

// Restore sets every setting from q. Settings missing from q, and numeric
// settings whose text does not parse, take their default value.
func (p *Panel) Restore(q url.Values) {
	for _, s := range p.settings {
		if _, ok := q[s.Name]; !ok {
			s.Value = s.Default
			continue
		}
		s.Value = s.parse(q.Get(s.Name))
	}
}

// Reset puts every setting back to its default.
func (p *Panel) Reset() {
	for _, s := range p.settings {
		s.Value = s.Default
	}
}

// Query writes every setting into a copy of base. Keys of base that are not
// settings are kept.
func (p *Panel) Query(base url.Values) url.Values {
	q := make(url.Values, len(base)+len(p.settings))
	for k, v := range base {
		q[k] = append([]string(nil), v...)
	}
	for _, s := range p.settings {
		q.Set(s.Name, s.Text())
	}
	return q
}

// Set assigns a value. Numeric values are clamped to the setting's range;
// boolean settings treat any non-zero value as true.
func (p *Panel) Set(name string, v float64) error {
	s, ok := p.byName[name]
	if !ok {
		return fmt.Errorf("unknown setting %q", name)
	}
	if s.Kind == Boolean {
		if v != 0 {
			v = 1
		}
		s.Value = v
		return nil
	}
	s.Value = s.clamp(v)
	return nil
}

// Toggle flips a boolean setting.
func (p *Panel) Toggle(name string) error {
	s, ok := p.byName[name]
	if !ok {
		return fmt.Errorf("unknown setting %q", name)
	}
	if s.Kind != Boolean {
		return fmt.Errorf("setting %q is %s, not boolean", name, s.Kind)
	}
	s.Value = 1 - s.Value
	return nil
}

// Step moves a numeric setting by n steps, snapping to the step grid.
func (p *Panel) Step(name string, n int) error {
	s, ok := p.byName[name]
	if !ok {
		return fmt.Errorf("unknown setting %q", name)
	}
	if s.Kind != Numeric {
		return fmt.Errorf("setting %q is %s, not numeric", name, s.Kind)
	}
	v := s.Value + float64(n)*s.Step
	scale := math.Pow10(decimals(s.Step))
	s.Value = s.clamp(math.Round(v*scale) / scale)
	return nil
}

// RequestSave snapshots the current values and hands them to the throttle,
// which replaces the location query at the end of the window.
func (p *Panel) RequestSave() {
	if p.location == nil || p.throttle == nil {
		return
	}
	q := p.Query(p.location.Query())
	loc := p.location
	p.throttle.Do(func() {
		loc.Replace(q)
	})
}

// Summary is a short one-line description of the values, e.g. for a title.
func (p *Panel) Summary() string {
	parts := make([]string, 0, len(p.settings))
	for _, s := range p.settings {
		parts = append(parts, s.Name+"="+s.Text())
	}
	return strings.Join(parts, " ")
}

func decimals(step float64) int {
	text := strconv.FormatFloat(step, 'f', -1, 64)
	if i := strings.IndexByte(text, '.'); i >= 0 {
		return len(text) - i - 1
	}
	return 0
}
