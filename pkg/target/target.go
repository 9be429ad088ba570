// Package target resolves the destination coordinate a work item should be
// filed against. Chat requests often omit explicit routing, so resolution
// runs an ordered fallback chain that strictly prefers explicit signals over
// inference.
package target

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resolution errors.
var (
	// ErrInvalidCoordinate is returned when a combined "owner/repo" string
	// does not split into exactly two non-empty segments.
	ErrInvalidCoordinate = errors.New("invalid repository coordinate format")

	// ErrNoAccessibleRepository is returned when the last-resort listing
	// fallback finds no repository the caller can reach.
	ErrNoAccessibleRepository = errors.New("no accessible repository found")

	// ErrNoTargetResolved is returned when no rule of the fallback chain
	// produced a coordinate.
	ErrNoTargetResolved = errors.New("no target repository resolved")
)

// Coordinate addresses the destination of a work item: owner+repo for the
// host backend, organization+project for the work-item backend.
type Coordinate struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String returns the combined "owner/name" form.
func (c Coordinate) String() string {
	return c.Owner + "/" + c.Name
}

// IsZero reports whether the coordinate is unresolved.
func (c Coordinate) IsZero() bool {
	return c.Owner == "" || c.Name == ""
}

// ParseFullName splits a combined "owner/repo" string on its single "/"
// delimiter. Both sides must be non-empty.
func ParseFullName(fullName string) (Coordinate, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, fullName)
	}
	return Coordinate{Owner: strings.TrimSpace(parts[0]), Name: strings.TrimSpace(parts[1])}, nil
}

// RepositoryLister lists repositories accessible to the caller's credential,
// bounded to at most limit entries.
type RepositoryLister interface {
	ListAccessibleRepositories(ctx context.Context, limit int) ([]Coordinate, error)
}

// Request carries the routing signals of one inbound request, strongest
// first.
type Request struct {
	// FullName is an explicit "owner/repo" string from the body or path.
	FullName string

	// ContextRepository is the repository the conversation is scoped to,
	// when the chat host supplies one.
	ContextRepository Coordinate
}

// DefaultListLimit caps the last-resort repository listing.
const DefaultListLimit = 5

// Resolver resolves a Request into exactly one Coordinate.
type Resolver struct {
	lister    RepositoryLister
	listLimit int
}

// NewResolver creates a resolver backed by the given lister for the
// last-resort fallback.
func NewResolver(lister RepositoryLister, listLimit int) *Resolver {
	if listLimit <= 0 {
		listLimit = DefaultListLimit
	}
	return &Resolver{lister: lister, listLimit: listLimit}
}

// Resolve runs the fallback chain, first success wins:
//  1. an explicit full-name string (ErrInvalidCoordinate if malformed),
//  2. the conversational payload's repository context,
//  3. the first entry of the caller's accessible-repository listing.
//
// An explicit coordinate is never silently overridden by a later rule; rule
// 3 is consulted only when rules 1 and 2 produced nothing. An empty listing
// yields ErrNoAccessibleRepository; a missing lister yields
// ErrNoTargetResolved.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Coordinate, error) {
	if strings.TrimSpace(req.FullName) != "" {
		return ParseFullName(req.FullName)
	}

	if !req.ContextRepository.IsZero() {
		return req.ContextRepository, nil
	}

	if r.lister == nil {
		return Coordinate{}, ErrNoTargetResolved
	}

	repos, err := r.lister.ListAccessibleRepositories(ctx, r.listLimit)
	if err != nil {
		return Coordinate{}, fmt.Errorf("failed to list accessible repositories: %w", err)
	}
	if len(repos) == 0 {
		return Coordinate{}, ErrNoAccessibleRepository
	}

	return repos[0], nil
}
