package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/altglass/imgcache/internal/resolver"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <source_image>",
	Short: "Delete a source image and every derivative made from it",
	Long: `Walks the source's directory tree and removes all files sharing the
source's base filename, including derivatives in nested size/mode
subdirectories and the source itself.`,
	Args: cobra.ExactArgs(1),
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}

	r := resolver.New(resolver.Config{
		PublicRoot: cfg.PublicRoot,
		Logger:     newLogger(),
	})
	if err := r.Delete(source); err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	logVerbose("purged %s and its derivatives", source)
	return nil
}
