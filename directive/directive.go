// Package directive resolves which syntax form (legacy or directive) a construct is parsed
// from and serialized to.
package directive

import (
	"fmt"
	"sort"
	"strings"
)

// Option controls directive syntax support for one extension.
type Option string

const (
	// Disabled parses and emits legacy syntax only.
	Disabled Option = "disabled"
	// Enabled parses both forms, keeps the syntax of existing blocks and emits legacy for new ones.
	Enabled Option = "enabled"
	// Preserve parses both forms, keeps the syntax of existing blocks and emits directive for new ones.
	Preserve Option = "preserve"
	// Overwrite parses both forms and emits directive syntax for every block.
	Overwrite Option = "overwrite"
	// Only parses and emits directive syntax; legacy blocks are not recognized.
	Only Option = "only"
)

// Syntax is the concrete form a block was written in.
type Syntax string

const (
	SyntaxLegacy    Syntax = "legacy"
	SyntaxDirective Syntax = "directive"
)

// AttrMarkup is the node attribute that remembers the parsed syntax.
const AttrMarkup = "markup"

// PluginValue is the parse-side view of an Option.
type PluginValue string

const (
	PluginDisabled PluginValue = "disabled"
	PluginEnabled  PluginValue = "enabled"
	PluginOnly     PluginValue = "only"
)

// Config holds the session directive syntax setting.
type Config struct {
	Default     Option            `json:"default,omitempty" yaml:"default,omitempty"`
	ByExtension map[string]Option `json:"byExtension,omitempty" yaml:"byExtension,omitempty"`
}

// ModeFor resolves the option for one extension.
func (c Config) ModeFor(extension string) Option {
	if extension != "" && c.ByExtension != nil {
		if option, ok := c.ByExtension[extension]; ok {
			return option
		}
	}
	if c.Default == "" {
		return Disabled
	}
	return c.Default
}

// ApplyDefaults fills the default option.
func (c Config) ApplyDefaults() Config {
	if c.Default == "" {
		c.Default = Disabled
	}
	return c
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	cloned := c
	if c.ByExtension != nil {
		cloned.ByExtension = make(map[string]Option, len(c.ByExtension))
		for key, value := range c.ByExtension {
			cloned.ByExtension[key] = value
		}
	}
	return cloned
}

// Validate checks that all options are known.
func (c Config) Validate() error {
	if !c.Default.Valid() {
		return fmt.Errorf("invalid directiveSyntax.default %q", c.Default)
	}
	for extension, option := range c.ByExtension {
		if strings.TrimSpace(extension) == "" {
			return fmt.Errorf("directiveSyntax.byExtension contains empty key")
		}
		if !option.Valid() {
			return fmt.Errorf("invalid directiveSyntax option %q for extension %q", option, extension)
		}
	}
	return nil
}

// Valid reports whether the option is one of the known values.
func (o Option) Valid() bool {
	switch o {
	case Disabled, Enabled, Preserve, Overwrite, Only:
		return true
	}
	return false
}

// ParseOption parses an option name.
func ParseOption(value string) (Option, error) {
	option := Option(strings.ToLower(strings.TrimSpace(value)))
	if !option.Valid() {
		return "", fmt.Errorf("invalid directive syntax option %q: must be one of disabled, enabled, preserve, overwrite, only", value)
	}
	return option, nil
}

// ParseConfig parses `option` or `option,ext=option,...` into a Config.
func ParseConfig(value string) (Config, error) {
	var cfg Config
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, raw, hasKey := strings.Cut(part, "=")
		if !hasKey {
			option, err := ParseOption(key)
			if err != nil {
				return Config{}, err
			}
			cfg.Default = option
			continue
		}
		option, err := ParseOption(raw)
		if err != nil {
			return Config{}, err
		}
		if cfg.ByExtension == nil {
			cfg.ByExtension = map[string]Option{}
		}
		cfg.ByExtension[strings.TrimSpace(key)] = option
	}
	cfg = cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// String formats the config in the form accepted by ParseConfig.
func (c Config) String() string {
	parts := []string{string(c.ModeFor(""))}
	keys := make([]string, 0, len(c.ByExtension))
	for key := range c.ByExtension {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, key+"="+string(c.ByExtension[key]))
	}
	return strings.Join(parts, ",")
}

// Context answers syntax questions for parsers, serializers and preview renderers.
type Context struct {
	config Config
}

// NewContext creates a Context for the given config.
func NewContext(config Config) *Context {
	return &Context{config: config.ApplyDefaults().Clone()}
}

// Option returns the session-wide option.
func (c *Context) Option() Option {
	return c.config.ModeFor("")
}

// Config returns a copy of the underlying config.
func (c *Context) Config() Config {
	return c.config.Clone()
}

// ValueFor returns the option for an extension.
func (c *Context) ValueFor(extension string) Option {
	return c.config.ModeFor(extension)
}

// MdPluginValueFor maps the option onto what the tokenizer accepts.
func (c *Context) MdPluginValueFor(extension string) PluginValue {
	switch c.ValueFor(extension) {
	case Disabled:
		return PluginDisabled
	case Only:
		return PluginOnly
	default:
		return PluginEnabled
	}
}

// AcceptsLegacy reports whether legacy syntax is parsed for an extension.
func (c *Context) AcceptsLegacy(extension string) bool {
	return c.MdPluginValueFor(extension) != PluginOnly
}

// AcceptsDirective reports whether directive syntax is parsed for an extension.
func (c *Context) AcceptsDirective(extension string) bool {
	return c.MdPluginValueFor(extension) != PluginDisabled
}

// SerializeAs picks the output syntax for a block. existing is the syntax the block was parsed
// from, or empty for blocks created in the editor.
func (c *Context) SerializeAs(extension string, existing Syntax) Syntax {
	switch c.ValueFor(extension) {
	case Enabled:
		if existing == SyntaxDirective {
			return SyntaxDirective
		}
		return SyntaxLegacy
	case Preserve:
		if existing == SyntaxLegacy {
			return SyntaxLegacy
		}
		return SyntaxDirective
	case Overwrite, Only:
		return SyntaxDirective
	default:
		return SyntaxLegacy
	}
}

// SyntaxOf reads the parsed syntax attribute of a node.
func SyntaxOf(attrs map[string]interface{}) Syntax {
	if attrs == nil {
		return ""
	}
	value, _ := attrs[AttrMarkup].(string)
	switch Syntax(value) {
	case SyntaxLegacy, SyntaxDirective:
		return Syntax(value)
	}
	return ""
}
