package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"
)

// GetCurrentUser retrieves the authenticated caller's identity via the
// "who am I" endpoint using go-github SDK
func (c *Client) GetCurrentUser(ctx context.Context) (*ActorInfo, error) {
	user, _, err := c.GitHubClient().Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", convertGitHubError(err))
	}

	info := &ActorInfo{
		Login: user.GetLogin(),
		Type:  user.GetType(),
	}

	// For GitHub Apps, extract the app slug from the bot username
	// e.g., "github-actions[bot]" -> "github-actions"
	if user.GetType() == "Bot" && info.Login != "" {
		if idx := strings.Index(info.Login, "[bot]"); idx > 0 {
			info.AppSlug = info.Login[:idx]
			info.Type = "App"
		}
	}

	return info, nil
}

// ListAccessibleRepositories lists repositories the credential can reach,
// bounded to at most limit entries. A single bounded page is fetched; the
// listing serves only as a last-resort target default, never an exhaustive
// inventory.
func (c *Client) ListAccessibleRepositories(ctx context.Context, limit int) ([]RepoInfo, error) {
	if limit <= 0 {
		limit = 5
	}

	opts := &github.RepositoryListByAuthenticatedUserOptions{
		ListOptions: github.ListOptions{PerPage: limit},
	}

	repos, _, err := c.GitHubClient().Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", convertGitHubError(err))
	}

	return convertRepoList(repos, limit), nil
}

// ListInstallationRepositories lists repositories accessible to a GitHub App
// installation token, bounded to at most limit entries.
func (c *Client) ListInstallationRepositories(ctx context.Context, limit int) ([]RepoInfo, error) {
	if limit <= 0 {
		limit = 5
	}

	opts := &github.ListOptions{PerPage: limit}

	listed, _, err := c.GitHubClient().Apps.ListRepos(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list installation repositories: %w", convertGitHubError(err))
	}
	if listed == nil {
		return nil, nil
	}

	return convertRepoList(listed.Repositories, limit), nil
}

// convertRepoList converts and caps a repository listing
func convertRepoList(repos []*github.Repository, limit int) []RepoInfo {
	infos := make([]RepoInfo, 0, len(repos))
	for _, repo := range repos {
		if repo == nil {
			continue
		}
		if len(infos) >= limit {
			break
		}
		infos = append(infos, convertFromGitHubRepo(repo))
	}
	return infos
}

// convertFromGitHubRepo converts a github.Repository to our RepoInfo type
func convertFromGitHubRepo(repo *github.Repository) RepoInfo {
	owner := ""
	if u := repo.GetOwner(); u != nil {
		owner = u.GetLogin()
	}

	return RepoInfo{
		Owner:    owner,
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
		Private:  repo.GetPrivate(),
	}
}

// CreateIssue creates a new GitHub issue. Exactly one creation attempt is
// made; failures carry the remote status and body.
func (c *Client) CreateIssue(ctx context.Context, owner, repo string, issue NewIssue) (*IssueInfo, error) {
	req := &github.IssueRequest{
		Title: &issue.Title,
	}
	if issue.Body != "" {
		req.Body = &issue.Body
	}
	if len(issue.Assignees) > 0 {
		req.Assignees = &issue.Assignees
	}
	if len(issue.Labels) > 0 {
		req.Labels = &issue.Labels
	}

	created, _, err := c.GitHubClient().Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", convertGitHubError(err))
	}

	return convertFromGitHubIssue(created), nil
}

// convertFromGitHubIssue converts a github.Issue to our IssueInfo type
func convertFromGitHubIssue(issue *github.Issue) *IssueInfo {
	author := ""
	if user := issue.GetUser(); user != nil {
		author = user.GetLogin()
	}

	info := &IssueInfo{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		URL:       issue.GetHTMLURL(),
		Author:    author,
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}

	// Repository may be nil in some API responses
	if issue.GetRepository() != nil {
		info.Repository = issue.GetRepository().GetFullName()
	}

	for _, assignee := range issue.Assignees {
		if assignee != nil {
			info.Assignees = append(info.Assignees, assignee.GetLogin())
		}
	}

	labels := issue.Labels
	info.Labels = make([]string, len(labels))
	for i, label := range labels {
		info.Labels[i] = label.GetName()
	}

	return info
}
