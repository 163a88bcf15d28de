package markup

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultCommonEscape matches characters escaped anywhere in a text run. A `<` that could
	// open HTML and an `&` that forms an entity are escaped too, so literal HTML stays text
	// on the next parse.
	DefaultCommonEscape = regexp.MustCompile("[`*\\\\~\\[\\]_]|<[A-Za-z/!?]|&(?:#[0-9]+|#[xX][0-9A-Fa-f]+|[A-Za-z][A-Za-z0-9]*);")
	// DefaultStartOfLineEscape matches block markers escaped only at the start of a line.
	DefaultStartOfLineEscape = regexp.MustCompile(`^(?:[#>+\-*=]|\d+\.)`)
)

// EscapeConfig holds the two independent escape pattern sets applied to literal text
// during serialization.
type EscapeConfig struct {
	CommonEscape      *regexp.Regexp
	StartOfLineEscape *regexp.Regexp
}

// DefaultEscapeConfig returns the built-in patterns.
func DefaultEscapeConfig() EscapeConfig {
	return EscapeConfig{
		CommonEscape:      DefaultCommonEscape,
		StartOfLineEscape: DefaultStartOfLineEscape,
	}
}

// ApplyDefaults fills unset patterns with the defaults.
func (c EscapeConfig) ApplyDefaults() EscapeConfig {
	if c.CommonEscape == nil {
		c.CommonEscape = DefaultCommonEscape
	}
	if c.StartOfLineEscape == nil {
		c.StartOfLineEscape = DefaultStartOfLineEscape
	}

	return c
}

// CompileEscapeConfig compiles pattern overrides; an empty pattern keeps the default.
func CompileEscapeConfig(common, startOfLine string) (EscapeConfig, error) {
	var cfg EscapeConfig
	if strings.TrimSpace(common) != "" {
		re, err := regexp.Compile(common)
		if err != nil {
			return EscapeConfig{}, fmt.Errorf("invalid commonEscape pattern: %w", err)
		}
		cfg.CommonEscape = re
	}
	if strings.TrimSpace(startOfLine) != "" {
		if !strings.HasPrefix(startOfLine, "^") {
			startOfLine = "^(?:" + startOfLine + ")"
		}
		re, err := regexp.Compile(startOfLine)
		if err != nil {
			return EscapeConfig{}, fmt.Errorf("invalid startOfLineEscape pattern: %w", err)
		}
		cfg.StartOfLineEscape = re
	}

	return cfg.ApplyDefaults(), nil
}

// Escape backslash-escapes a literal text run. Every common-escape match is escaped except
// an underscore inside a word. When startOfLine is set, a start-of-line match at position 0
// gets a backslash before its last character (`#` becomes `\#`, `12.` becomes `12\.`).
func (c EscapeConfig) Escape(text string, startOfLine bool) string {
	c = c.ApplyDefaults()

	var sb strings.Builder
	last := 0
	for _, loc := range c.CommonEscape.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		match := text[loc[0]:loc[1]]
		if match == "_" && isIntraWord(text, loc[0], loc[1]) {
			continue
		}
		sb.WriteString(text[last:loc[0]])
		sb.WriteByte('\\')
		sb.WriteString(match)
		last = loc[1]
	}
	sb.WriteString(text[last:])
	escaped := sb.String()

	if startOfLine {
		if loc := c.StartOfLineEscape.FindStringIndex(escaped); loc != nil && loc[0] == 0 && loc[1] > 0 {
			_, size := utf8.DecodeLastRuneInString(escaped[:loc[1]])
			cut := loc[1] - size
			escaped = escaped[:cut] + "\\" + escaped[cut:]
		}
	}

	return escaped
}

func isIntraWord(text string, start, end int) bool {
	if start == 0 || end >= len(text) {
		return false
	}
	before, _ := utf8.DecodeLastRuneInString(text[:start])
	after, _ := utf8.DecodeRuneInString(text[end:])
	return isWordRune(before) && isWordRune(after)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
