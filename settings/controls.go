package settings

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

//go:embed panel.toml
var defaultPanel []byte

// Control is one entry of a panel file. It mirrors the attributes of a form
// input: the type decides the kind of setting it produces.
type Control struct {
	Setting string   `toml:"setting"`
	Label   string   `toml:"label"`
	Type    string   `toml:"type"`
	Checked bool     `toml:"checked"`
	Value   float64  `toml:"value"`
	Min     *float64 `toml:"min"`
	Max     *float64 `toml:"max"`
	Step    float64  `toml:"step"`
}

type panelFile struct {
	Controls []Control `toml:"control"`
}

// ConfigError reports a panel definition that cannot be turned into settings.
// It is fatal: the panel is not built.
type ConfigError struct {
	Setting string
	Type    string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("settings: control %q (type %q): %s", e.Setting, e.Type, e.Reason)
	}
	return fmt.Sprintf("settings: control %q: %s", e.Setting, e.Reason)
}

// ParseControls decodes a TOML panel definition.
func ParseControls(data []byte) ([]Control, error) {
	var pf panelFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse panel: %w", err)
	}
	return pf.Controls, nil
}

// LoadControls reads a panel definition from path, or the built-in panel when
// path is empty.
func LoadControls(path string) ([]Control, error) {
	if path == "" {
		return DefaultControls(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read panel %s: %w", path, err)
	}
	return ParseControls(data)
}

// DefaultControls returns the built-in panel.
func DefaultControls() []Control {
	controls, err := ParseControls(defaultPanel)
	if err != nil {
		panic(err)
	}
	return controls
}

func kindOf(c Control) (Kind, error) {
	switch strings.ToLower(c.Type) {
	case "checkbox":
		return Boolean, nil
	case "range", "number":
		return Numeric, nil
	default:
		return 0, &ConfigError{Setting: c.Setting, Type: c.Type, Reason: "unrecognized control type"}
	}
}
