package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ironsheep/frcnn-detect/internal/acquire"
	"github.com/ironsheep/frcnn-detect/internal/detector"
	"github.com/ironsheep/frcnn-detect/internal/imaging"
)

// imageExtensions are the file types both back-ends decode.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

func newBatchCommand(a *app) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Detect objects in every image of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args[0], outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the annotated JPEGs (default DIR/detections)")
	cmd.Flags().Int("workers", 0, "Images processed at once (default workers setting)")
	_ = a.v.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	return cmd
}

// listImages returns the image files directly inside dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read input directory")
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// outputName maps photo.png to photo.detections.jpg.
func outputName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".detections.jpg"
}

func batchItems(paths []string, kind imaging.Kind) []detector.BatchItem {
	items := make([]detector.BatchItem, len(paths))
	for i, p := range paths {
		src := &acquire.FileSource{Path: p}
		items[i] = detector.BatchItem{Name: p, Kind: kind, Load: src.Acquire}
	}
	return items
}

func (a *app) runBatch(cmd *cobra.Command, dir, outputDir string) error {
	if outputDir == "" {
		outputDir = filepath.Join(dir, "detections")
	}
	paths, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		a.logger.Infow("no images found", "dir", dir)
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	kind, err := a.settings.ProcessorKind()
	if err != nil {
		return err
	}
	d, closeSession, err := a.newDetector(nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSession(); err != nil {
			a.logger.Warnw("close session", "error", err)
		}
	}()

	a.logger.Infow("batch started", "images", len(paths), "workers", a.settings.Workers)
	results := d.Batch(cmd.Context(), batchItems(paths, kind), a.settings.Workers)

	out := cmd.OutOrStdout()
	var failed, skipped int
	for _, r := range results {
		switch {
		case errors.Is(r.Err, acquire.ErrNoImage):
			skipped++
			fmt.Fprintf(out, "%s: empty, skipped\n", r.Name)
		case r.Err != nil:
			failed++
			fmt.Fprintf(out, "%s: %v\n", r.Name, r.Err)
		default:
			dst := filepath.Join(outputDir, outputName(r.Name))
			if err := os.WriteFile(dst, r.Result.Image, 0o644); err != nil {
				failed++
				fmt.Fprintf(out, "%s: write %s: %v\n", r.Name, dst, err)
				continue
			}
			fmt.Fprintf(out, "%s: %d detection(s) -> %s\n", r.Name, len(r.Result.Detections), dst)
		}
	}

	if err := cmd.Context().Err(); err != nil {
		return err
	}
	if failed > 0 {
		return errors.Errorf("%d of %d images failed", failed, len(paths)-skipped)
	}
	return nil
}
