package main

import (
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// VersionInfo is the version command's JSON shape.
type VersionInfo struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Built    string `json:"built"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := VersionInfo{
			Version:  version,
			Commit:   commit,
			Built:    date,
			Go:       runtime.Version(),
			Platform: runtime.GOOS + "/" + runtime.GOARCH,
		}
		if jsonOut {
			return printJSON(info)
		}
		printInfo("btpsctl %s\n", info.Version)
		printInfo("  commit: %s\n", info.Commit)
		printInfo("  built: %s (%s, %s)\n", info.Built, info.Go, info.Platform)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
