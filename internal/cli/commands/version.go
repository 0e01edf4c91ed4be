package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/pkg/adapter"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the leaprun version, the Go runtime and the registered database adapters.`,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "leaprun v%s\n", version)
			_, _ = fmt.Fprintln(w, "Dependency-aware transformation runner built with Go")
			_, _ = fmt.Fprintf(w, "go:       %s\n", runtime.Version())
			if rev := vcsRevision(); rev != "" {
				_, _ = fmt.Fprintf(w, "commit:   %s\n", rev)
			}
			_, _ = fmt.Fprintf(w, "adapters: %s\n", strings.Join(adapter.ListAdapters(), ", "))
		},
	}
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}
	return ""
}
