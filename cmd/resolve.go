package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/altglass/imgcache/internal/geometry"
	"github.com/altglass/imgcache/internal/resolver"
)

var (
	resolveWidth   int
	resolveHeight  int
	resolveMode    string
	resolveQuality int
	resolveFormat  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <source_image>",
	Short: "Produce (and cache) a derivative, printing its public path",
	Long: `Resolves one derivative of the source image. On the first call the
image is decoded, orientation-corrected, reshaped per --mode and written
to the deterministic cache path; later calls return the cached file.

Modes: crop, crop-top, crop-bottom, fit, fit-x, fit-y.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().IntVarP(&resolveWidth, "width", "W", 0, "target width in pixels")
	resolveCmd.Flags().IntVarP(&resolveHeight, "height", "H", 0, "target height in pixels")
	resolveCmd.Flags().StringVarP(&resolveMode, "mode", "m", "", "resize mode (default from config)")
	resolveCmd.Flags().IntVarP(&resolveQuality, "quality", "q", 0, "quality 1-100 (0 = config default)")
	resolveCmd.Flags().StringVarP(&resolveFormat, "format", "f", "", "output format (gif, jpeg, png, webp)")
	resolveCmd.MarkFlagRequired("width")
	resolveCmd.MarkFlagRequired("height")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	modeStr := resolveMode
	if modeStr == "" {
		modeStr = cfg.Mode
	}
	mode, err := geometry.ParseMode(modeStr)
	if err != nil {
		return err
	}
	if resolveWidth <= 0 || resolveHeight <= 0 {
		return fmt.Errorf("width and height must be positive, got %dx%d", resolveWidth, resolveHeight)
	}

	source, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}

	quality := resolveQuality
	if quality == 0 {
		quality = cfg.Quality
	}

	r := resolver.New(resolver.Config{
		PublicRoot:     cfg.PublicRoot,
		Placeholder:    cfg.Placeholder,
		DefaultQuality: cfg.Quality,
		Logger:         newLogger(),
	})

	path, err := r.Resolve(resolver.TransformRequest{
		SourcePath:   source,
		Width:        resolveWidth,
		Height:       resolveHeight,
		Mode:         mode,
		Quality:      quality,
		OutputFormat: resolveFormat,
	})
	for _, msg := range r.Errors() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}
	if err != nil {
		return err
	}

	fmt.Println(path)
	return nil
}
