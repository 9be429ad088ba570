// Package intent extracts a structured issue intent from free-form
// conversational text. Parsing is a pure function: deterministic, no I/O,
// and it never fails. Missing markers degrade to defaults.
package intent

import (
	"regexp"
	"strings"
)

// DefaultTitle is substituted when no usable title can be extracted.
const DefaultTitle = "Default Issue Title from Copilot"

var (
	// titleRe matches `title: "<value>"` with optional quotes. The unquoted
	// form captures to the end of the line or a clause delimiter.
	titleRe = regexp.MustCompile(`(?i)title\s*:\s*(?:"([^"]*)"|([^"\n,;]+))`)

	// assigneeRe matches `assign to: "@handle"`, `assignee to: handle` and
	// the `assign it to:` variant. Quotes and the leading @ are optional.
	assigneeRe = regexp.MustCompile(`(?i)assign(?:ee)?\s+(?:it\s+)?to\s*:\s*(?:"@?([A-Za-z0-9_-]+)"|@?([A-Za-z0-9_-]+))`)

	// commandPrefixRe strips a recognized issue-command keyword from the
	// front of the text before it is reused as a title.
	commandPrefixRe = regexp.MustCompile(`(?i)^(?:please\s+)?(?:create|file|open|report)\s+(?:a\s+|an\s+)?(?:new\s+)?(?:issue|bug|ticket|work\s*item)\s*[:,-]?\s*`)

	// configRe matches the work-item configuration command:
	// `config <organization>/<project> <token>`.
	configRe = regexp.MustCompile(`(?i)^\s*config\s+([^\s/]+)/([^\s/]+)\s+(\S+)\s*$`)
)

// Intent is the structured result of parsing one conversational turn.
type Intent struct {
	Title     string   `json:"title"`
	Body      string   `json:"body,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// Config is a parsed work-item configuration command.
type Config struct {
	Organization string
	Project      string
	Token        string
}

// Parse extracts an Intent from the raw text of the latest user turn.
//
// Title resolution order: an explicit `title:` marker wins; otherwise the
// whole remaining command text (command keyword and any matched assignee
// clause stripped) is the title; if that trims to empty, DefaultTitle is
// used. The parser itself never adds a default assignee.
func Parse(text string) Intent {
	var it Intent

	remaining := text

	if m := assigneeRe.FindStringSubmatchIndex(remaining); m != nil {
		handle := firstGroup(remaining, m)
		if handle != "" {
			it.Assignees = []string{handle}
		}
		remaining = remaining[:m[0]] + remaining[m[1]:]
	}

	if m := titleRe.FindStringSubmatch(remaining); m != nil {
		title := m[1]
		if title == "" {
			title = trimClause(m[2])
		}
		it.Title = strings.TrimSpace(title)
	}

	if it.Title == "" {
		stripped := commandPrefixRe.ReplaceAllString(strings.TrimSpace(remaining), "")
		it.Title = strings.TrimSpace(stripped)
	}
	if it.Title == "" {
		it.Title = DefaultTitle
	}

	return it
}

// ParseConfig recognizes a work-item configuration command and reports
// whether the text was one.
func ParseConfig(text string) (Config, bool) {
	m := configRe.FindStringSubmatch(text)
	if m == nil {
		return Config{}, false
	}
	return Config{Organization: m[1], Project: m[2], Token: m[3]}, true
}

// IsConfigCommand reports whether the text is a work-item configuration
// command without extracting it.
func IsConfigCommand(text string) bool {
	return configRe.MatchString(text)
}

// firstGroup returns the first non-empty capture group of a submatch index
// set produced against s.
func firstGroup(s string, m []int) string {
	for i := 2; i < len(m); i += 2 {
		if m[i] >= 0 {
			return s[m[i]:m[i+1]]
		}
	}
	return ""
}

// trimClause removes trailing punctuation and delimiters an unquoted capture
// may have swallowed.
func trimClause(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".,;:!?")
}
