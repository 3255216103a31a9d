package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/altglass/imgcache/internal/config"
)

var (
	version    = "0.1.0"
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "imgcache",
	Short: "On-demand image derivative cache",
	Long: `imgcache — resizes and crops images on demand and caches every
derivative at a deterministic path next to its source.

A derivative of img/photo.jpg at 200x100 in crop mode lives at
img/200-100/crop/photo.jpg; repeated requests are served from disk
without decoding anything. Deleting a source cascades to all of its
derivatives.`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgcache %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// loadConfig reads the --config file, or returns defaults when the
// flag is unset.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// newLogger builds the CLI logger; --verbose enables debug records.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[imgcache] "+format+"\n", args...)
	}
}
