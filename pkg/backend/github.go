package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/issuegate/issuegate/pkg/auth"
	"github.com/issuegate/issuegate/pkg/github"
	"github.com/issuegate/issuegate/pkg/intent"
	"github.com/issuegate/issuegate/pkg/target"
)

// GitHubName is the registry name of the GitHub backend.
const GitHubName = "github"

// GitHub creates issues via the GitHub REST API.
type GitHub struct {
	opts []github.ClientOption
}

// NewGitHub creates a GitHub backend. Options are applied to every client
// built for a request credential (base URL and timeout overrides, mostly
// for tests).
func NewGitHub(opts ...github.ClientOption) *GitHub {
	return &GitHub{opts: opts}
}

// Name returns the backend's registry name.
func (g *GitHub) Name() string {
	return GitHubName
}

// CreateIssue files one issue in the owner/repo coordinate. The remote call
// is made exactly once; rejections surface the remote status and body.
func (g *GitHub) CreateIssue(ctx context.Context, cred auth.Credential, coord target.Coordinate, it intent.Intent) (*CreationResult, error) {
	client := github.NewClient(cred.Token(), g.opts...)

	issue, err := client.CreateIssue(ctx, coord.Owner, coord.Name, github.NewIssue{
		Title:     it.Title,
		Body:      it.Body,
		Assignees: it.Assignees,
		Labels:    it.Labels,
	})
	if err != nil {
		return nil, remoteErrorFromGitHub(err)
	}

	if issue.URL == "" {
		return nil, fmt.Errorf("%w: created issue has no URL", ErrMalformedResponse)
	}

	return &CreationResult{
		URL:      issue.URL,
		RemoteID: strconv.Itoa(issue.Number),
	}, nil
}

// remoteErrorFromGitHub converts a remote rejection into a RemoteError
// carrying the remote status and the full diagnostic body. The client
// normalizes go-github failures into *APIError, so one branch covers both
// the SDK and the direct-HTTP path.
func remoteErrorFromGitHub(err error) error {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Body,
		}
	}

	// Transport-level failure: no remote status to mirror
	return err
}
