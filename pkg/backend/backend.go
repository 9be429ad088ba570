// Package backend defines the issue-tracking backend abstraction: one
// interface, multiple remote implementations (GitHub REST, Azure DevOps
// work-item REST), selected by configuration.
package backend

import (
	"context"

	"github.com/issuegate/issuegate/pkg/auth"
	"github.com/issuegate/issuegate/pkg/intent"
	"github.com/issuegate/issuegate/pkg/target"
)

//go:generate mockgen -source=backend.go -destination=mocks/backend.gen.go -package=mocks

// CreationResult is the outcome of a successful work-item creation.
type CreationResult struct {
	// URL is the browsable locator of the created work item. Always
	// present: a 2xx response without one is treated as malformed.
	URL string `json:"url"`

	// RemoteID is the backend's identifier for the work item, when the
	// backend exposes one.
	RemoteID string `json:"remote_id,omitempty"`
}

// Backend creates work items against one remote issue-tracking API.
//
// Implementations make exactly one creation attempt per call: failures are
// surfaced, never retried, and never masked as success.
type Backend interface {
	// Name returns the backend's registry name.
	Name() string

	// CreateIssue performs the single remote creation call.
	CreateIssue(ctx context.Context, cred auth.Credential, coord target.Coordinate, it intent.Intent) (*CreationResult, error)
}
