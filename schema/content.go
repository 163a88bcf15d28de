package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

type exprKind int

const (
	exprName exprKind = iota
	exprSeq
	exprChoice
	exprRepeat
)

// contentExpr is a compiled content expression.
type contentExpr struct {
	kind  exprKind
	types []string
	exprs []*contentExpr
	min   int
	max   int // -1 for unbounded
}

// ContentMatch validates child sequences against a compiled content expression.
type ContentMatch struct {
	source string
	expr   *contentExpr
	types  []string
}

// String returns the source expression.
func (m *ContentMatch) String() string {
	if m == nil {
		return ""
	}

	return m.source
}

// IsEmpty reports whether the expression allows no content at all.
func (m *ContentMatch) IsEmpty() bool {
	return m == nil || m.expr == nil
}

// Types returns every node type name referenced by the expression, in first-reference order.
func (m *ContentMatch) Types() []string {
	if m == nil {
		return nil
	}

	return append([]string(nil), m.types...)
}

// Allows reports whether a node type may appear anywhere in the content.
func (m *ContentMatch) Allows(nodeType string) bool {
	if m == nil {
		return false
	}

	return containsString(m.types, nodeType)
}

// Matches reports whether the ordered child types satisfy the expression.
func (m *ContentMatch) Matches(childTypes []string) bool {
	if m == nil || m.expr == nil {
		return len(childTypes) == 0
	}
	for _, end := range matchExpr(m.expr, childTypes, 0) {
		if end == len(childTypes) {
			return true
		}
	}

	return false
}

// compileContent parses expression source. resolve maps a name to node types (a type name or a group).
func compileContent(source string, resolve func(name string) ([]string, bool)) (*ContentMatch, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return &ContentMatch{source: source}, nil
	}

	stream := &tokenStream{source: trimmed, tokens: tokenizeContent(trimmed), resolve: resolve}
	expr, err := stream.parseChoice()
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("unexpected token %q in content expression %q", stream.tokens[stream.pos], source)
	}

	return &ContentMatch{source: source, expr: expr, types: stream.collected()}, nil
}

func tokenizeContent(source string) []string {
	var tokens []string
	for idx := 0; idx < len(source); {
		ch := rune(source[idx])
		switch {
		case unicode.IsSpace(ch):
			idx++
		case isNameChar(ch):
			end := idx
			for end < len(source) && isNameChar(rune(source[end])) {
				end++
			}
			tokens = append(tokens, source[idx:end])
			idx = end
		default:
			tokens = append(tokens, string(ch))
			idx++
		}
	}

	return tokens
}

func isNameChar(ch rune) bool {
	return ch == '_' || ch == '-' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

type tokenStream struct {
	source  string
	tokens  []string
	pos     int
	resolve func(name string) ([]string, bool)
	seen    []string
}

func (s *tokenStream) next() string {
	if s.pos >= len(s.tokens) {
		return ""
	}

	return s.tokens[s.pos]
}

func (s *tokenStream) eat(token string) bool {
	if s.next() == token {
		s.pos++
		return true
	}

	return false
}

func (s *tokenStream) collected() []string {
	return s.seen
}

func (s *tokenStream) parseChoice() (*contentExpr, error) {
	exprs := make([]*contentExpr, 0, 1)
	for {
		seq, err := s.parseSeq()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, seq)
		if !s.eat("|") {
			break
		}
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}

	return &contentExpr{kind: exprChoice, exprs: exprs}, nil
}

func (s *tokenStream) parseSeq() (*contentExpr, error) {
	var exprs []*contentExpr
	for s.pos < len(s.tokens) && s.next() != ")" && s.next() != "|" {
		term, err := s.parseTerm()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, term)
	}
	if len(exprs) == 0 {
		return nil, fmt.Errorf("empty sequence in content expression %q", s.source)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}

	return &contentExpr{kind: exprSeq, exprs: exprs}, nil
}

func (s *tokenStream) parseTerm() (*contentExpr, error) {
	expr, err := s.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case s.eat("+"):
			expr = &contentExpr{kind: exprRepeat, exprs: []*contentExpr{expr}, min: 1, max: -1}
		case s.eat("*"):
			expr = &contentExpr{kind: exprRepeat, exprs: []*contentExpr{expr}, min: 0, max: -1}
		case s.eat("?"):
			expr = &contentExpr{kind: exprRepeat, exprs: []*contentExpr{expr}, min: 0, max: 1}
		case s.eat("{"):
			minCount, maxCount, err := s.parseRange()
			if err != nil {
				return nil, err
			}
			expr = &contentExpr{kind: exprRepeat, exprs: []*contentExpr{expr}, min: minCount, max: maxCount}
		default:
			return expr, nil
		}
	}
}

func (s *tokenStream) parseRange() (int, int, error) {
	minCount, err := s.parseNumber()
	if err != nil {
		return 0, 0, err
	}
	maxCount := minCount
	if s.eat(",") {
		if s.next() == "}" {
			maxCount = -1
		} else {
			maxCount, err = s.parseNumber()
			if err != nil {
				return 0, 0, err
			}
		}
	}
	if !s.eat("}") {
		return 0, 0, fmt.Errorf("unclosed braced range in content expression %q", s.source)
	}
	if maxCount != -1 && maxCount < minCount {
		return 0, 0, fmt.Errorf("invalid range {%d,%d} in content expression %q", minCount, maxCount, s.source)
	}

	return minCount, maxCount, nil
}

func (s *tokenStream) parseNumber() (int, error) {
	token := s.next()
	value, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("expected number, got %q in content expression %q", token, s.source)
	}
	s.pos++
	return value, nil
}

func (s *tokenStream) parseAtom() (*contentExpr, error) {
	if s.eat("(") {
		expr, err := s.parseChoice()
		if err != nil {
			return nil, err
		}
		if !s.eat(")") {
			return nil, fmt.Errorf("missing closing paren in content expression %q", s.source)
		}
		return expr, nil
	}

	token := s.next()
	if token == "" || !isNameChar(rune(token[0])) {
		return nil, fmt.Errorf("unexpected token %q in content expression %q", token, s.source)
	}
	s.pos++

	types, ok := s.resolve(token)
	if !ok {
		return nil, fmt.Errorf("no node type or group %q found (in content expression %q)", token, s.source)
	}
	for _, typeName := range types {
		if !containsString(s.seen, typeName) {
			s.seen = append(s.seen, typeName)
		}
	}

	return &contentExpr{kind: exprName, types: types}, nil
}

// matchExpr returns the sorted set of positions at which expr can finish when started at pos.
func matchExpr(expr *contentExpr, seq []string, pos int) []int {
	switch expr.kind {
	case exprName:
		if pos < len(seq) && containsString(expr.types, seq[pos]) {
			return []int{pos + 1}
		}
		return nil

	case exprSeq:
		positions := []int{pos}
		for _, sub := range expr.exprs {
			var next []int
			for _, p := range positions {
				next = unionPositions(next, matchExpr(sub, seq, p))
			}
			if len(next) == 0 {
				return nil
			}
			positions = next
		}
		return positions

	case exprChoice:
		var result []int
		for _, sub := range expr.exprs {
			result = unionPositions(result, matchExpr(sub, seq, pos))
		}
		return result

	case exprRepeat:
		var result []int
		if expr.min == 0 {
			result = []int{pos}
		}
		frontier := []int{pos}
		for count := 1; expr.max == -1 || count <= expr.max; count++ {
			var next []int
			for _, p := range frontier {
				next = unionPositions(next, matchExpr(expr.exprs[0], seq, p))
			}
			if len(next) == 0 {
				break
			}
			if count >= expr.min {
				result = unionPositions(result, next)
			}
			if samePositions(next, frontier) && count >= expr.min {
				break
			}
			if count > len(seq)+expr.min {
				break
			}
			frontier = next
		}
		return result
	}

	return nil
}

func unionPositions(left, right []int) []int {
	if len(right) == 0 {
		return left
	}
	merged := append(append([]int(nil), left...), right...)
	sort.Ints(merged)
	out := make([]int, 0, len(merged))
	for _, value := range merged {
		if len(out) == 0 || out[len(out)-1] != value {
			out = append(out, value)
		}
	}

	return out
}

func samePositions(left, right []int) bool {
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}

	return true
}
