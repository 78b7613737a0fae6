package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

func newStackCmd() *cobra.Command {
	var composeFile string
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage the local docker-compose stack (postgres, redis, minio, server, worker)",
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file to use")

	compose := func(args ...string) []string {
		return append([]string{"compose", "-f", composeFile}, args...)
	}

	var detach, skipBuild, removeVolumes, follow bool
	up := &cobra.Command{
		Use:   "up [service...]",
		Short: "Start the stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := compose("up")
			if !skipBuild {
				composeArgs = append(composeArgs, "--build")
			}
			if detach {
				composeArgs = append(composeArgs, "-d")
			}
			return runCommand(cmd.Context(), "docker", append(composeArgs, args...)...)
		},
	}
	up.Flags().BoolVarP(&detach, "detached", "d", true, "Run in detached mode")
	up.Flags().BoolVar(&skipBuild, "skip-build", false, "Skip rebuilding images before starting")

	down := &cobra.Command{
		Use:   "down",
		Short: "Stop the stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := compose("down")
			if removeVolumes {
				composeArgs = append(composeArgs, "-v")
			}
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}
	down.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Remove stack volumes")

	logs := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Show service logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := compose("logs")
			if follow {
				composeArgs = append(composeArgs, "-f")
			}
			return runCommand(cmd.Context(), "docker", append(composeArgs, args...)...)
		},
	}
	logs.Flags().BoolVar(&follow, "follow", false, "Stream logs continuously")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run a binary with go run against the stack",
	}
	for _, name := range []string{"server", "worker"} {
		path := "./cmd/" + name
		run.AddCommand(&cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("go run %s", path),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCommand(cmd.Context(), "go", append([]string{"run", path}, args...)...)
			},
		})
	}

	cmd.AddCommand(up, down, logs, run)
	return cmd
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
