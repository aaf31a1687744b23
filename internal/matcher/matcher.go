// Package matcher routes hostnames to provider instances by domain
// pattern, glob by default with regex as an opt-in.
package matcher

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternType selects the pattern dialect.
type PatternType int

const (
	// PatternTypeGlob interprets *, ?, and [abc] wildcards.
	PatternTypeGlob PatternType = iota
	// PatternTypeRegex compiles patterns as full regular expressions.
	PatternTypeRegex
)

// compiledPattern keeps the source text next to its compiled form so the
// matcher can render itself for logs.
type compiledPattern struct {
	original string
	regex    *regexp.Regexp
}

// DomainMatcher decides whether a hostname belongs to one provider
// instance, using include patterns carved down by excludes.
type DomainMatcher struct {
	includes    []*compiledPattern
	excludes    []*compiledPattern
	patternType PatternType
}

// DomainMatcherConfig configures a DomainMatcher.
type DomainMatcherConfig struct {
	// Includes must match for a hostname to be accepted (any one suffices).
	// Glob: "*.example.com", "?.example.com". Regex: `^[a-z0-9-]+\.example\.com$`.
	Includes []string

	// Excludes reject a hostname before includes are consulted.
	Excludes []string

	// UseRegex switches the dialect from glob to regex.
	UseRegex bool
}

// NewDomainMatcher compiles the configured patterns, failing on the first
// invalid one.
func NewDomainMatcher(cfg DomainMatcherConfig) (*DomainMatcher, error) {
	if len(cfg.Includes) == 0 {
		return nil, fmt.Errorf("at least one include pattern is required")
	}

	m := &DomainMatcher{
		includes: make([]*compiledPattern, 0, len(cfg.Includes)),
		excludes: make([]*compiledPattern, 0, len(cfg.Excludes)),
	}
	if cfg.UseRegex {
		m.patternType = PatternTypeRegex
	}

	for _, p := range cfg.Includes {
		cp, err := m.compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
		m.includes = append(m.includes, cp)
	}
	for _, p := range cfg.Excludes {
		cp, err := m.compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		m.excludes = append(m.excludes, cp)
	}

	return m, nil
}

// Matches reports whether the hostname belongs to this matcher. Excludes
// veto first; then any include match accepts. Matching is case-insensitive.
func (m *DomainMatcher) Matches(hostname string) bool {
	hostname = strings.ToLower(hostname)

	for _, ex := range m.excludes {
		if ex.regex.MatchString(hostname) {
			return false
		}
	}
	for _, inc := range m.includes {
		if inc.regex.MatchString(hostname) {
			return true
		}
	}
	return false
}

// compile turns a pattern into an anchored, case-insensitive regex,
// translating glob syntax when that dialect is active.
func (m *DomainMatcher) compile(pattern string) (*compiledPattern, error) {
	regexStr := pattern
	if m.patternType == PatternTypeGlob {
		regexStr = globToRegex(pattern)
	}
	if !strings.HasPrefix(regexStr, "(?i)") {
		regexStr = "(?i)" + regexStr
	}

	re, err := regexp.Compile(regexStr)
	if err != nil {
		return nil, err
	}
	return &compiledPattern{original: pattern, regex: re}, nil
}

// globToRegex translates glob syntax into an anchored regex:
//   - * matches any run of characters, dots included, so "*.example.com"
//     also covers nested subdomains
//   - ? matches one character, but never a dot
//   - [abc] passes through as a character class
//
// everything else is matched literally.
func globToRegex(pattern string) string {
	var sb strings.Builder
	sb.WriteString("^")

	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString("[^.]")
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end == -1 {
				// Unclosed class, treat the bracket literally.
				sb.WriteString(regexp.QuoteMeta(string(c)))
			} else {
				sb.WriteString(pattern[i : i+end+1])
				i += end
			}
		case '.':
			sb.WriteString("\\.")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	sb.WriteString("$")
	return sb.String()
}

// String renders the matcher's patterns for logs.
func (m *DomainMatcher) String() string {
	typeStr := "glob"
	if m.patternType == PatternTypeRegex {
		typeStr = "regex"
	}
	parts := []string{fmt.Sprintf("type=%s", typeStr)}

	if len(m.includes) > 0 {
		parts = append(parts, fmt.Sprintf("includes=[%s]", joinOriginals(m.includes)))
	}
	if len(m.excludes) > 0 {
		parts = append(parts, fmt.Sprintf("excludes=[%s]", joinOriginals(m.excludes)))
	}
	return fmt.Sprintf("DomainMatcher{%s}", strings.Join(parts, ", "))
}

func joinOriginals(patterns []*compiledPattern) string {
	originals := make([]string, len(patterns))
	for i, p := range patterns {
		originals[i] = p.original
	}
	return strings.Join(originals, ", ")
}
