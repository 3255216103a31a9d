package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/altglass/imgcache/internal/codec"
	"github.com/altglass/imgcache/internal/orient"
)

var infoCmd = &cobra.Command{
	Use:   "info <source_image>",
	Short: "Probe an image without transforming it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(_ *cobra.Command, args []string) error {
	path := args[0]

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	probe, err := codec.Sniff(path)
	if err != nil {
		return fmt.Errorf("unsupported image: %w", err)
	}

	fmt.Printf("  Format:      %s\n", probe.Format)
	fmt.Printf("  Dimensions:  %dx%d\n", probe.Width, probe.Height)
	fmt.Printf("  File size:   %s\n", formatBytes(stat.Size()))

	if probe.Format == "jpeg" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		tag := orient.Read(f)
		f.Close()
		fmt.Printf("  Orientation: %d", int(tag))
		if tag != orient.TagNormal {
			fmt.Printf("  (will be corrected on first resolve)")
		}
		fmt.Println()
	}

	registry := codec.NewRegistry()
	logVerbose("%s", registry.String())
	return nil
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
