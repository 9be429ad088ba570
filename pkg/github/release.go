package github

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	// GatewayRepoOwner is the GitHub repository owner for issuegate releases
	GatewayRepoOwner = "issuegate"
	// GatewayRepoName is the GitHub repository name for issuegate releases
	GatewayRepoName = "issuegate"
	// VersionCheckEnvVar is the environment variable to disable version checking
	VersionCheckEnvVar = "ISSUEGATE_NO_VERSION_CHECK"
)

// FetchLatestRelease fetches the latest stable release from GitHub.
// Drafts and prereleases are skipped.
func (c *Client) FetchLatestRelease(ctx context.Context, owner, repo string) (*ReleaseInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases", c.baseURL, owner, repo)

	req, err := c.NewRequest(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var releases []ReleaseInfo
	resp, err := c.Do(req, &releases)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch releases: %w", err)
	}
	defer resp.Close()

	for _, r := range releases {
		if r.Draft || r.Prerelease {
			continue
		}
		if strings.HasPrefix(r.TagName, "v") {
			return &r, nil
		}
	}

	return nil, fmt.Errorf("no stable release found for %s/%s", owner, repo)
}

// CheckForUpdates checks if a newer issuegate release is available.
// Returns the latest release info and whether the current version is up to
// date. Public releases need no token, so an anonymous client is used.
func CheckForUpdates(ctx context.Context, currentVersion string) (*ReleaseInfo, bool, error) {
	if os.Getenv(VersionCheckEnvVar) != "" {
		return nil, false, fmt.Errorf("version check disabled via %s", VersionCheckEnvVar)
	}

	client := NewClient("")
	release, err := client.FetchLatestRelease(ctx, GatewayRepoOwner, GatewayRepoName)
	if err != nil {
		return nil, false, err
	}

	upToDate := compareVersions(currentVersion, release.TagName) >= 0
	return release, upToDate, nil
}

// compareVersions compares two vX.Y.Z version strings.
// Returns -1 if a < b, 0 if equal, 1 if a > b. Non-numeric or development
// versions compare as older than any tagged release.
func compareVersions(a, b string) int {
	pa := parseVersion(a)
	pb := parseVersion(b)

	for i := 0; i < 3; i++ {
		if pa[i] < pb[i] {
			return -1
		}
		if pa[i] > pb[i] {
			return 1
		}
	}
	return 0
}

// parseVersion parses a vX.Y.Z string into its numeric parts
func parseVersion(v string) [3]int {
	var parts [3]int
	v = strings.TrimPrefix(v, "v")
	// Strip any pre-release/build suffix
	if idx := strings.IndexAny(v, "-+"); idx >= 0 {
		v = v[:idx]
	}
	segs := strings.Split(v, ".")
	for i := 0; i < len(segs) && i < 3; i++ {
		n := 0
		for _, ch := range segs[i] {
			if ch < '0' || ch > '9' {
				return [3]int{}
			}
			n = n*10 + int(ch-'0')
		}
		parts[i] = n
	}
	return parts
}
