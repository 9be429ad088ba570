package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/issuegate/issuegate/pkg/auth"
	"github.com/issuegate/issuegate/pkg/intent"
	"github.com/issuegate/issuegate/pkg/target"
)

const (
	// AzureDevOpsName is the registry name of the Azure DevOps backend.
	AzureDevOpsName = "azure-devops"

	// azureDefaultBaseURL is the default Azure DevOps API base URL
	azureDefaultBaseURL = "https://dev.azure.com"

	// azureAPIVersion pins the work-item tracking API version
	azureAPIVersion = "7.0"

	// azureWorkItemType is the created work-item type
	azureWorkItemType = "Bug"
)

// AzureDevOps creates work items via the Azure DevOps work-item tracking
// REST API. The coordinate maps to organization (Owner) and project (Name);
// the credential is a personal access token sent via basic auth.
type AzureDevOps struct {
	baseURL    string
	httpClient *http.Client
}

// AzureOption configures an AzureDevOps backend
type AzureOption func(*AzureDevOps)

// WithAzureBaseURL sets a custom base URL (for testing)
func WithAzureBaseURL(baseURL string) AzureOption {
	return func(a *AzureDevOps) {
		a.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAzureHTTPClient sets a custom HTTP client
func WithAzureHTTPClient(client *http.Client) AzureOption {
	return func(a *AzureDevOps) {
		a.httpClient = client
	}
}

// NewAzureDevOps creates an Azure DevOps backend
func NewAzureDevOps(opts ...AzureOption) *AzureDevOps {
	a := &AzureDevOps{
		baseURL: azureDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the backend's registry name.
func (a *AzureDevOps) Name() string {
	return AzureDevOpsName
}

// patchOp is one operation of a JSON-patch document
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// CreateIssue files one work item in the organization/project coordinate.
// The request body is a JSON-patch document, per the work-item tracking API.
func (a *AzureDevOps) CreateIssue(ctx context.Context, cred auth.Credential, coord target.Coordinate, it intent.Intent) (*CreationResult, error) {
	doc := []patchOp{
		{Op: "add", Path: "/fields/System.Title", Value: it.Title},
	}
	if it.Body != "" {
		doc = append(doc, patchOp{Op: "add", Path: "/fields/System.Description", Value: it.Body})
	}
	if len(it.Assignees) > 0 {
		doc = append(doc, patchOp{Op: "add", Path: "/fields/System.AssignedTo", Value: it.Assignees[0]})
	}
	if len(it.Labels) > 0 {
		doc = append(doc, patchOp{Op: "add", Path: "/fields/System.Tags", Value: strings.Join(it.Labels, "; ")})
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch document: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/_apis/wit/workitems/$%s?api-version=%s",
		a.baseURL,
		url.PathEscape(coord.Owner),
		url.PathEscape(coord.Name),
		azureWorkItemType,
		azureAPIVersion,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json-patch+json")
	req.Header.Set("Authorization", "Basic "+basicAuth(cred))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create work item: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read work item response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: body}
	}

	var item struct {
		ID    int `json:"id"`
		Links struct {
			HTML struct {
				Href string `json:"href"`
			} `json:"html"`
		} `json:"_links"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	itemURL := item.Links.HTML.Href
	if itemURL == "" {
		itemURL = item.URL
	}
	if itemURL == "" {
		return nil, fmt.Errorf("%w: created work item has no URL", ErrMalformedResponse)
	}

	return &CreationResult{
		URL:      itemURL,
		RemoteID: strconv.Itoa(item.ID),
	}, nil
}

// basicAuth encodes the credential the way the work-item API expects:
// an empty username and the personal access token as the password.
func basicAuth(cred auth.Credential) string {
	return base64.StdEncoding.EncodeToString([]byte(":" + cred.Token()))
}
