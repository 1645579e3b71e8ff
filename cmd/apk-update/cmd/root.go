package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kolbasa/apk-update/internal/config"
	"github.com/kolbasa/apk-update/internal/logger"
	"github.com/kolbasa/apk-update/internal/service/packager"
	"github.com/kolbasa/apk-update/internal/version"
)

const (
	minArgs = 2
	maxArgs = 3

	usage = "USAGE:\n" +
		"\tapk-update <apk-path> <output-path> [<password>]\n\n" +
		"\tapk-path    - path to your apk\n" +
		"\toutput-path - your update is copied here\n" +
		"\tpassword    - optional password\n"
)

var (
	// errUsage is returned when the positional arguments do not match the usage.
	errUsage = errors.New("invalid arguments")

	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for packaging an update.
	rootCmd = &cobra.Command{
		Use:   "apk-update <apk-path> <output-path> [<password>]",
		Short: "Package an Android application as a distributable update",
		Long: "Compress an APK into a zip archive, optionally protected with a password, " +
			"and write a JSON manifest describing the archive and the application next to it.",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < minArgs || len(args) > maxArgs {
				return errUsage
			}

			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				ConfigPath: configPath,
				SourcePath: args[0],
				OutputPath: args[1],
				Stdout:     cmd.OutOrStdout(),
			}

			if len(args) == maxArgs {
				options.Password = args[2]
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the apk-update CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	os.Exit(execute(context.Background(), rootCmd, os.Stderr))
}

// execute runs root and maps its result to a process exit code.
func execute(ctx context.Context, root *cobra.Command, stderr io.Writer) int {
	defer logger.Sync()

	err := root.ExecuteContext(ctx)

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprint(stderr, usage)
	default:
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	return 1
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Flags end at the first positional argument, so passwords may start with a dash.
	rootCmd.Flags().SetInterspersed(false)
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (defaults to $"+config.EnvConfigPath+" or "+config.DefaultConfigFilename+")")
}
