package github

import "time"

// ActorInfo represents the authenticated GitHub user or app
type ActorInfo struct {
	Login   string `json:"login"`              // Username or app name
	Type    string `json:"type"`               // "User" or "App"
	AppSlug string `json:"app_slug,omitempty"` // App slug if type is "App"
}

// RepoInfo contains the subset of repository information the gateway uses
// for target resolution
type RepoInfo struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

// NewIssue contains the information for creating a new issue
type NewIssue struct {
	Title     string   `json:"title"`
	Body      string   `json:"body,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// IssueInfo contains basic issue information
type IssueInfo struct {
	Number     int       `json:"number"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	State      string    `json:"state"`
	URL        string    `json:"url"`
	Author     string    `json:"author"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Repository string    `json:"repository"`
	Assignees  []string  `json:"assignees,omitempty"`
	Labels     []string  `json:"labels,omitempty"`
}

// ReleaseInfo represents information about a GitHub release
type ReleaseInfo struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}
