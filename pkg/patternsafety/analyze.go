package patternsafety

import (
	"fmt"
	"strconv"
	"strings"
)

// groupFrame tracks what the scanner has seen inside one parenthesized
// group while it is still open.
type groupFrame struct {
	// hasQuantifier is set when any quantifier appears inside the
	// group, directly or within a nested group.
	hasQuantifier bool
	// branches collects the literal text of top-level alternation
	// branches, used to reject quantified duplicate alternations.
	branches      []string
	currentBranch strings.Builder
}

// analyze statically rejects patterns whose shape is known to allow
// catastrophic backtracking: a quantified group that itself contains a
// quantifier (`(a+)+`, `((a*)b)+`), a quantified alternation with
// duplicate branches (`(a|a)+`), unbounded group depth, and oversized
// counted repetitions. The scan is conservative: it never has to prove
// an attack, only to refuse the shapes that make one possible.
func (v *Validator) analyze(pattern string) error {
	if len(pattern) > v.maxPatternLength {
		return fmt.Errorf("%w: %d > %d", ErrPatternTooLong, len(pattern), v.maxPatternLength)
	}

	var stack []*groupFrame
	root := &groupFrame{}
	current := root
	depth := 0

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '\\':
			// Escaped character: never structural.
			current.currentBranch.WriteByte(c)
			if i+1 < len(pattern) {
				current.currentBranch.WriteByte(pattern[i+1])
				i++
			}
			i++
		case '[':
			// Character classes are linear; skip to the closing
			// bracket, honoring escapes and a leading ']'.
			j := i + 1
			if j < len(pattern) && pattern[j] == '^' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				if pattern[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(pattern) {
				return fmt.Errorf("pattern %q has an unterminated character class", pattern)
			}
			current.currentBranch.WriteString(pattern[i : j+1])
			i = j + 1
			// A quantifier may follow the class; that is a plain
			// quantified element, handled by the default case.
		case '(':
			depth++
			if depth > v.maxGroupDepth {
				return fmt.Errorf("%w: %d > %d", ErrGroupsTooDeep, depth, v.maxGroupDepth)
			}
			stack = append(stack, current)
			current = &groupFrame{}
			i++
			i = skipGroupPrefix(pattern, i)
		case ')':
			if len(stack) == 0 {
				return fmt.Errorf("pattern %q has an unbalanced ')'", pattern)
			}
			closed := current
			closed.branches = append(closed.branches, closed.currentBranch.String())
			current = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			depth--
			i++

			quantified, next, unbounded, err := v.quantifierAt(pattern, i)
			if err != nil {
				return err
			}
			if quantified {
				if closed.hasQuantifier {
					return fmt.Errorf("%w: %q", ErrNestedQuantifier, pattern)
				}
				if unbounded && duplicateBranches(closed.branches) {
					return fmt.Errorf("%w: %q", ErrDuplicateAlternation, pattern)
				}
				current.hasQuantifier = true
				i = next
			}
			if closed.hasQuantifier {
				current.hasQuantifier = true
			}
			current.currentBranch.WriteString("()")
		case '|':
			current.branches = append(current.branches, current.currentBranch.String())
			current.currentBranch.Reset()
			i++
		case '*', '+':
			current.hasQuantifier = true
			current.currentBranch.WriteByte(c)
			i++
		case '?':
			// Optionality alone does not multiply match paths the
			// way * and + do, but it still counts as a quantifier
			// for nesting purposes.
			current.hasQuantifier = true
			current.currentBranch.WriteByte(c)
			i++
		case '{':
			quantified, next, _, err := v.quantifierAt(pattern, i)
			if err != nil {
				return err
			}
			if quantified {
				current.hasQuantifier = true
				i = next
			} else {
				current.currentBranch.WriteByte(c)
				i++
			}
		default:
			current.currentBranch.WriteByte(c)
			i++
		}
	}

	if len(stack) != 0 {
		return fmt.Errorf("pattern %q has an unbalanced '('", pattern)
	}
	return nil
}

// quantifierAt reports whether a quantifier starts at pos, where the
// scan should resume after it, and whether it is unbounded. Counted
// repetitions above the configured maximum are rejected here.
func (v *Validator) quantifierAt(pattern string, pos int) (quantified bool, next int, unbounded bool, err error) {
	if pos >= len(pattern) {
		return false, pos, false, nil
	}
	switch pattern[pos] {
	case '*', '+':
		return true, skipLazy(pattern, pos+1), true, nil
	case '?':
		return true, skipLazy(pattern, pos+1), false, nil
	case '{':
		end := strings.IndexByte(pattern[pos:], '}')
		if end < 0 {
			// regexp2 treats an unclosed brace as a literal.
			return false, pos, false, nil
		}
		body := pattern[pos+1 : pos+end]
		low, high, ok := parseRepeat(body)
		if !ok {
			return false, pos, false, nil
		}
		if high < 0 {
			unbounded = true
		} else if high > v.maxRepeatCount {
			return false, pos, false, fmt.Errorf("%w: {%s}", ErrRepeatTooLarge, body)
		}
		if low > v.maxRepeatCount {
			return false, pos, false, fmt.Errorf("%w: {%s}", ErrRepeatTooLarge, body)
		}
		return true, skipLazy(pattern, pos+end+1), unbounded, nil
	}
	return false, pos, false, nil
}

// skipLazy steps over a lazy-quantifier suffix ('?' after the
// quantifier), which does not change the complexity class.
func skipLazy(pattern string, pos int) int {
	if pos < len(pattern) && pattern[pos] == '?' {
		return pos + 1
	}
	return pos
}

// parseRepeat parses "n", "n,", "n,m" repeat bodies. high of -1 means
// open-ended.
func parseRepeat(body string) (low, high int, ok bool) {
	parts := strings.SplitN(body, ",", 2)
	low, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || low < 0 {
		return 0, 0, false
	}
	if len(parts) == 1 {
		return low, low, true
	}
	rest := strings.TrimSpace(parts[1])
	if rest == "" {
		return low, -1, true
	}
	high, err = strconv.Atoi(rest)
	if err != nil || high < low {
		return 0, 0, false
	}
	return low, high, true
}

// skipGroupPrefix advances past non-capturing, lookaround, named-group
// and inline-flag prefixes directly after '(' so their '?' is never
// mistaken for a quantifier.
func skipGroupPrefix(pattern string, i int) int {
	if i >= len(pattern) || pattern[i] != '?' {
		return i
	}
	i++
	if i >= len(pattern) {
		return i
	}
	switch pattern[i] {
	case ':', '=', '!', '>':
		return i + 1
	case '<':
		i++
		if i < len(pattern) && (pattern[i] == '=' || pattern[i] == '!') {
			return i + 1
		}
		for i < len(pattern) && pattern[i] != '>' {
			i++
		}
		if i < len(pattern) {
			i++
		}
		return i
	case 'P':
		i++
		if i < len(pattern) && pattern[i] == '<' {
			for i < len(pattern) && pattern[i] != '>' {
				i++
			}
			if i < len(pattern) {
				i++
			}
		}
		return i
	default:
		// Inline flags, e.g. (?i) or (?im:...).
		for i < len(pattern) && pattern[i] != ')' && pattern[i] != ':' {
			i++
		}
		if i < len(pattern) && pattern[i] == ':' {
			i++
		}
		return i
	}
}

func duplicateBranches(branches []string) bool {
	if len(branches) < 2 {
		return false
	}
	seen := make(map[string]struct{}, len(branches))
	for _, b := range branches {
		if b == "" {
			continue
		}
		if _, dup := seen[b]; dup {
			return true
		}
		seen[b] = struct{}{}
	}
	return false
}
