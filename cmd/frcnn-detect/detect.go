package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ironsheep/frcnn-detect/internal/acquire"
	"github.com/ironsheep/frcnn-detect/internal/detector"
)

type detectFlags struct {
	source string
	input  string
	url    string
	output string
}

func newDetectCommand(a *app) *cobra.Command {
	f := &detectFlags{}

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect objects in one image and write the annotated JPEG",
		Long: "Acquire an image from the bundled sample, a file or a camera snapshot URL, " +
			"run the model on it, print every detection and write the resized image with boxes drawn on it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDetect(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.source, "source", "", "Image source: sample, file or capture (default file when --input is set, else sample)")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Image file for the file source")
	cmd.Flags().StringVar(&f.url, "url", "", "Snapshot URL for the capture source (default capture.url)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "detections.jpg", "Where to write the annotated JPEG")
	return cmd
}

func (a *app) runDetect(cmd *cobra.Command, f *detectFlags) error {
	mode, err := acquire.ParseMode(f.source)
	if err != nil {
		return err
	}
	if f.source == "" && f.input != "" {
		mode = acquire.ModeFile
	}
	url := f.url
	if url == "" {
		url = a.settings.Capture.URL
	}
	src, err := acquire.New(mode, acquire.Options{
		Path:    f.input,
		URL:     url,
		Timeout: a.settings.Capture.Timeout,
	})
	if err != nil {
		return err
	}

	raw, err := src.Acquire(cmd.Context())
	if errors.Is(err, acquire.ErrNoImage) {
		a.logger.Infow("no image acquired, nothing to do", "source", mode)
		return nil
	}
	if err != nil {
		return err
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

	res, err := d.Detect(raw, kind)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.output, res.Image, 0o644); err != nil {
		return errors.Wrap(err, "write output image")
	}

	printResult(cmd.OutOrStdout(), res)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f.output)
	return nil
}

// printResult writes one line per detection followed by the stage timings.
func printResult(w io.Writer, res *detector.Result) {
	fmt.Fprintf(w, "%d detection(s) in %dx%d image (%s, orientation %s)\n",
		len(res.Detections), res.Width, res.Height, res.Processor, res.Orientation)

	if len(res.Detections) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tCONFIDENCE\tX_MIN\tY_MIN\tX_MAX\tY_MAX")
		for _, d := range res.Detections {
			fmt.Fprintf(tw, "%s\t%.2f\t%.1f\t%.1f\t%.1f\t%.1f\n",
				d.Label, d.Confidence, d.Box.XMin, d.Box.YMin, d.Box.XMax, d.Box.YMax)
		}
		tw.Flush()
	}

	t := res.Timings
	fmt.Fprintf(w, "preprocess %v, tensor %v, inference %v, decode %v, render %v\n",
		t.Preprocess, t.Tensor, t.Inference, t.Decode, t.Render)
}
