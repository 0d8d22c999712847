package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

type target struct {
	os   string
	arch string
}

// boards the monitor is deployed to
var targets = map[string]target{
	"nanopi": {os: "linux", arch: "arm"},
	"rpi":    {os: "linux", arch: "arm64"},
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the tempmon binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, _ := cmd.Flags().GetString("version")
			goos, _ := cmd.Flags().GetString("os")
			arch, _ := cmd.Flags().GetString("arch")
			board, _ := cmd.Flags().GetString("board")
			if board != "" {
				t, ok := targets[board]
				if !ok {
					return fmt.Errorf("unknown board %q", board)
				}
				goos, arch = t.os, t.arch
			}
			out := fmt.Sprintf("dist/tempmon-%s-%s", goos, arch)

			// hid needs cgo: cross builds run in the build container
			if goos == runtime.GOOS && arch == runtime.GOARCH {
				slog.Info("building natively", "out", out, "version", version)
				return build.GoBuild(out, "./cmd/tempmon", build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "main",
					EnableCgo:     true,
					Arch:          arch,
					OS:            goos,
				})
			}
			noCache, err := cmd.Flags().GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			slog.Info("building in container", "out", out, "version", version)
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", goos, arch),
				[]string{"build", "--version", version, "--os", goos, "--arch", arch},
				build.DockerBuildOpts{
					NoCache: noCache,
					Image:   "gophertribe/gobuild:1.25-bookworm",
				})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the binary")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("board", "", "build for a board: nanopi or rpi")
	return cmd
}
