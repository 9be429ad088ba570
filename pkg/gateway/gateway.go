// Package gateway orchestrates one work-item creation: it composes the
// credential, the caller's identity, target resolution and the parsed
// intent into exactly one backend creation call.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/issuegate/issuegate/pkg/auth"
	"github.com/issuegate/issuegate/pkg/backend"
	"github.com/issuegate/issuegate/pkg/github"
	"github.com/issuegate/issuegate/pkg/intent"
	"github.com/issuegate/issuegate/pkg/target"
	"github.com/issuegate/issuegate/pkg/userconfig"
)

// Gateway errors
var (
	// ErrMissingTitle is returned by operations that require an explicit
	// title instead of falling back to the default.
	ErrMissingTitle = errors.New("missing title")

	// ErrNoWorkItemConfig is returned when a caller files a work item
	// without having registered organization/project/token first.
	ErrNoWorkItemConfig = errors.New("missing work item configuration")
)

// Identity is the authenticated caller's stable account handle.
type Identity struct {
	Handle string
}

// HostClient is the slice of the host API the orchestrator needs.
// *github.Client satisfies it.
type HostClient interface {
	GetCurrentUser(ctx context.Context) (*github.ActorInfo, error)
	ListAccessibleRepositories(ctx context.Context, limit int) ([]github.RepoInfo, error)
	ListInstallationRepositories(ctx context.Context, limit int) ([]github.RepoInfo, error)
}

// HostClientFactory builds a host client bound to a request credential.
type HostClientFactory func(cred auth.Credential) HostClient

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithListLimit caps the last-resort repository listing
func WithListLimit(limit int) Option {
	return func(o *Orchestrator) {
		o.listLimit = limit
	}
}

// WithDefaultLabels sets labels applied when the intent carries none
func WithDefaultLabels(labels []string) Option {
	return func(o *Orchestrator) {
		o.defaultLabels = labels
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithWorkItemBackend sets the alternate work-item backend and its
// per-caller configuration store
func WithWorkItemBackend(b backend.Backend, store userconfig.Store) Option {
	return func(o *Orchestrator) {
		o.workItemBackend = b
		o.configStore = store
	}
}

// Orchestrator wires the gateway's decision logic together. All remote
// calls within one operation are sequential; nothing is fanned out.
type Orchestrator struct {
	hosts           HostClientFactory
	issueBackend    backend.Backend
	workItemBackend backend.Backend
	configStore     userconfig.Store
	listLimit       int
	defaultLabels   []string
	logger          *slog.Logger
}

// New creates an orchestrator over the given host client factory and issue
// backend.
func New(hosts HostClientFactory, issueBackend backend.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		hosts:        hosts,
		issueBackend: issueBackend,
		listLimit:    target.DefaultListLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateRequest carries the routing and intent signals of one inbound
// creation request.
type CreateRequest struct {
	// Credential authorizes the caller against the host API.
	Credential auth.Credential

	// FullName is an explicit "owner/repo" from the body or path, if any.
	FullName string

	// ContextRepository is the repository the conversation is scoped to,
	// when the chat host supplied one.
	ContextRepository target.Coordinate

	// Intent is the parsed (or explicitly supplied) issue intent.
	Intent intent.Intent
}

// CreateIssue resolves the target coordinate and the caller's identity,
// applies the default-assignment policy, and performs exactly one remote
// creation call.
//
// Validation failures (credential, coordinate) are reported before any
// network call. When the intent carries no assignee, the resolved identity
// becomes the assignee; that is an orchestrator policy, not parsing.
// The creation call is never retried.
func (o *Orchestrator) CreateIssue(ctx context.Context, req CreateRequest) (*backend.CreationResult, target.Coordinate, error) {
	if req.Credential.IsZero() {
		return nil, target.Coordinate{}, auth.ErrMissingCredential
	}

	it := req.Intent
	if strings.TrimSpace(it.Title) == "" {
		it.Title = intent.DefaultTitle
	}
	if len(it.Labels) == 0 {
		it.Labels = o.defaultLabels
	}

	// Explicit coordinate parsing happens before any remote call
	var host HostClient
	coord, err := o.resolveTarget(ctx, req, func() HostClient {
		if host == nil {
			host = o.hosts(req.Credential)
		}
		return host
	})
	if err != nil {
		return nil, target.Coordinate{}, err
	}

	if len(it.Assignees) == 0 {
		if host == nil {
			host = o.hosts(req.Credential)
		}
		identity, err := lookupIdentity(ctx, host)
		if err != nil {
			return nil, target.Coordinate{}, err
		}
		if identity.Handle != "" {
			it.Assignees = []string{identity.Handle}
		}
	}

	o.logger.Info("creating work item",
		"backend", o.issueBackend.Name(),
		"target", coord.String(),
		"title", it.Title,
		"credential", req.Credential.Redacted(),
	)

	result, err := o.issueBackend.CreateIssue(ctx, req.Credential, coord, it)
	if err != nil {
		return nil, coord, err
	}

	return result, coord, nil
}

// resolveTarget runs the fallback chain of the target resolver, binding
// the last-resort listing to the request credential lazily.
func (o *Orchestrator) resolveTarget(ctx context.Context, req CreateRequest, host func() HostClient) (target.Coordinate, error) {
	lister := &credentialLister{
		host:   host,
		scheme: req.Credential.Scheme(),
	}
	resolver := target.NewResolver(lister, o.listLimit)

	return resolver.Resolve(ctx, target.Request{
		FullName:          req.FullName,
		ContextRepository: req.ContextRepository,
	})
}

// credentialLister adapts the host client to target.RepositoryLister,
// picking the listing endpoint that matches the credential scheme.
type credentialLister struct {
	host   func() HostClient
	scheme auth.Scheme
}

func (l *credentialLister) ListAccessibleRepositories(ctx context.Context, limit int) ([]target.Coordinate, error) {
	var (
		repos []github.RepoInfo
		err   error
	)
	if l.scheme == auth.SchemeInstallation {
		repos, err = l.host().ListInstallationRepositories(ctx, limit)
	} else {
		repos, err = l.host().ListAccessibleRepositories(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	coords := make([]target.Coordinate, 0, len(repos))
	for _, r := range repos {
		coords = append(coords, target.Coordinate{Owner: r.Owner, Name: r.Name})
	}
	return coords, nil
}

// lookupIdentity exchanges the credential for the caller's handle.
func lookupIdentity(ctx context.Context, host HostClient) (Identity, error) {
	actor, err := host.GetCurrentUser(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	return Identity{Handle: actor.Login}, nil
}

// ResolveIdentity exposes identity lookup for operations that key state by
// caller handle.
func (o *Orchestrator) ResolveIdentity(ctx context.Context, cred auth.Credential) (Identity, error) {
	if cred.IsZero() {
		return Identity{}, auth.ErrMissingCredential
	}
	return lookupIdentity(ctx, o.hosts(cred))
}

// SaveWorkItemConfig stores the caller's work-item backend configuration,
// keyed by the handle their credential resolves to.
func (o *Orchestrator) SaveWorkItemConfig(ctx context.Context, cred auth.Credential, cfg userconfig.Config) (Identity, error) {
	if o.configStore == nil {
		return Identity{}, fmt.Errorf("work item backend is not configured")
	}

	identity, err := o.ResolveIdentity(ctx, cred)
	if err != nil {
		return Identity{}, err
	}

	o.configStore.Set(identity.Handle, cfg)
	o.logger.Info("stored work item configuration",
		"handle", identity.Handle,
		"organization", cfg.Organization,
		"project", cfg.Project,
	)
	return identity, nil
}

// CreateWorkItem files a work item via the alternate backend using the
// caller's stored configuration.
func (o *Orchestrator) CreateWorkItem(ctx context.Context, cred auth.Credential, it intent.Intent) (*backend.CreationResult, error) {
	if o.workItemBackend == nil || o.configStore == nil {
		return nil, fmt.Errorf("work item backend is not configured")
	}

	identity, err := o.ResolveIdentity(ctx, cred)
	if err != nil {
		return nil, err
	}

	cfg, ok := o.configStore.Get(identity.Handle)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoWorkItemConfig, identity.Handle)
	}

	if strings.TrimSpace(it.Title) == "" {
		it.Title = intent.DefaultTitle
	}

	coord := target.Coordinate{Owner: cfg.Organization, Name: cfg.Project}

	o.logger.Info("creating work item",
		"backend", o.workItemBackend.Name(),
		"target", coord.String(),
		"title", it.Title,
		"handle", identity.Handle,
	)

	return o.workItemBackend.CreateIssue(ctx, auth.FromToken(cfg.Token, auth.SchemePlain), coord, it)
}
