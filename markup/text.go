package markup

import (
	"strings"

	"golang.org/x/net/html"
)

// LiteralText turns a raw markdown text segment into its literal value: backslash escapes of
// ASCII punctuation are removed and entity references are decoded.
func LiteralText(raw []byte) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for idx := 0; idx < len(raw); idx++ {
		ch := raw[idx]
		switch {
		case ch == '\\' && idx+1 < len(raw) && isASCIIPunct(raw[idx+1]):
			sb.WriteByte(raw[idx+1])
			idx++
		case ch == '&':
			end := entityEnd(raw, idx)
			if end < 0 {
				sb.WriteByte(ch)
				continue
			}
			sb.WriteString(html.UnescapeString(string(raw[idx:end])))
			idx = end - 1
		default:
			sb.WriteByte(ch)
		}
	}

	return sb.String()
}

func entityEnd(raw []byte, start int) int {
	for idx := start + 1; idx < len(raw) && idx-start <= 32; idx++ {
		ch := raw[idx]
		if ch == ';' {
			if idx == start+1 {
				return -1
			}
			return idx + 1
		}
		if !(ch == '#' || ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z') {
			return -1
		}
	}

	return -1
}

func isASCIIPunct(ch byte) bool {
	return strings.IndexByte("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", ch) >= 0
}
