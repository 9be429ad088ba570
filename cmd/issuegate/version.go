package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/issuegate/issuegate/pkg/github"
)

// These variables are set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCheck bool
var versionQuiet bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for the issuegate CLI.

This shows the version number, git commit SHA, and build date.
The version is set at build time via git tags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionCheck {
			return checkForUpdates(cmd.Context())
		}

		fmt.Printf("issuegate version %s\n", Version)
		if Commit != "" && Commit != "unknown" {
			fmt.Printf("commit: %s\n", Commit)
		}
		if BuildDate != "" && BuildDate != "unknown" {
			fmt.Printf("built at: %s\n", BuildDate)
		}
		return nil
	},
}

// checkForUpdates checks for newer issuegate releases and displays the result
func checkForUpdates(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fmt.Printf("issuegate version %s\n", Version)

	release, upToDate, err := github.CheckForUpdates(ctx, Version)
	if err != nil {
		if os.Getenv(github.VersionCheckEnvVar) != "" {
			// Silent exit when disabled
			return nil
		}
		// Print error but don't fail - this is a nice-to-have feature
		fmt.Fprintf(os.Stderr, "Warning: failed to check for updates: %v\n", err)
		return nil
	}

	if upToDate {
		if !versionQuiet {
			fmt.Printf("You're running the latest version (%s)\n", release.TagName)
		}
		return nil
	}

	fmt.Printf("\nA newer version is available!\n")
	fmt.Printf("   Current: %s\n", Version)
	fmt.Printf("   Latest:  %s\n", release.TagName)
	fmt.Printf("\nDownload: %s\n", release.HTMLURL)

	return nil
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "Check for newer issuegate releases")
	versionCmd.Flags().BoolVar(&versionQuiet, "quiet", false, "Quiet mode: suppress success message when up to date")
	rootCmd.AddCommand(versionCmd)
}
