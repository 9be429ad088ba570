package intent

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Intent
	}{
		{
			name: "quoted title and quoted assignee",
			text: `create an issue title: "Fix crash" assign to: "@alice"`,
			want: Intent{Title: "Fix crash", Assignees: []string{"alice"}},
		},
		{
			name: "markers anywhere in surrounding text",
			text: `hey there, could you title: "Fix crash" for me and assign it to: "@alice" thanks!`,
			want: Intent{Title: "Fix crash", Assignees: []string{"alice"}},
		},
		{
			name: "unquoted title",
			text: "title: broken login page",
			want: Intent{Title: "broken login page"},
		},
		{
			name: "unquoted title with trailing punctuation",
			text: "title: broken login page!!",
			want: Intent{Title: "broken login page"},
		},
		{
			name: "unquoted assignee without at sign",
			text: `title: "Slow queries" assignee to: bob`,
			want: Intent{Title: "Slow queries", Assignees: []string{"bob"}},
		},
		{
			name: "case insensitive markers",
			text: `TITLE: "Mixed Case" ASSIGN TO: "@Carol"`,
			want: Intent{Title: "Mixed Case", Assignees: []string{"Carol"}},
		},
		{
			name: "no markers uses whole text as title",
			text: "the search box returns no results",
			want: Intent{Title: "the search box returns no results"},
		},
		{
			name: "command prefix stripped from fallback title",
			text: "create a bug: search box returns no results",
			want: Intent{Title: "search box returns no results"},
		},
		{
			name: "file an issue prefix",
			text: "file an issue search index is stale",
			want: Intent{Title: "search index is stale"},
		},
		{
			name: "empty text gets default title",
			text: "   ",
			want: Intent{Title: DefaultTitle},
		},
		{
			name: "bare command gets default title",
			text: "create an issue",
			want: Intent{Title: DefaultTitle},
		},
		{
			name: "assignee only keeps default title",
			text: `assign to: "@dave"`,
			want: Intent{Title: DefaultTitle, Assignees: []string{"dave"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

// Parsing the same text twice must yield an identical intent.
func TestParseIdempotent(t *testing.T) {
	text := `create an issue title: "Fix crash" assign to: "@alice"`
	first := Parse(text)
	second := Parse(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Parse not idempotent: %+v vs %+v", first, second)
	}
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   Config
		wantOK bool
	}{
		{
			name:   "valid config command",
			text:   "config contoso/widgets pat-token-123",
			want:   Config{Organization: "contoso", Project: "widgets", Token: "pat-token-123"},
			wantOK: true,
		},
		{
			name:   "case insensitive keyword",
			text:   "CONFIG contoso/widgets tok",
			want:   Config{Organization: "contoso", Project: "widgets", Token: "tok"},
			wantOK: true,
		},
		{
			name: "missing token",
			text: "config contoso/widgets",
		},
		{
			name: "missing project",
			text: "config contoso tok",
		},
		{
			name: "not a config command",
			text: "create an issue about config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseConfig(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ParseConfig(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseConfig(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}
