package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/frcnn-detect/internal/config"
	"github.com/ironsheep/frcnn-detect/internal/detector"
	"github.com/ironsheep/frcnn-detect/internal/imaging"
	"github.com/ironsheep/frcnn-detect/internal/inference"
	"github.com/ironsheep/frcnn-detect/internal/logging"
)

// app is the state shared by every subcommand once settings are loaded.
type app struct {
	v          *viper.Viper
	configFile string
	settings   *config.Settings
	logger     *zap.SugaredLogger
}

// globalFlags maps persistent flag names to their setting keys.
var globalFlags = map[string]string{
	"model":        "model_path",
	"onnx-library": "onnx_library",
	"processor":    "processor",
	"mode":         "mode",
	"platform":     "platform",
	"threads":      "threads",
	"padding":      "padding",
	"log-level":    "log_level",
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "frcnn-detect",
		Short:         "Detect objects in photos with a Faster R-CNN model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "YAML config file")
	pf.String("model", "", "Path to the Faster R-CNN ONNX model")
	pf.String("onnx-library", "", "Path to the onnxruntime shared library")
	pf.String("processor", "", "Image back-end: imaging or bild")
	pf.String("mode", "", "Session mode: default or platform")
	pf.String("platform", "", "Execution provider for platform mode: cpu, coreml or cuda")
	pf.Int("threads", 0, "Intra-op threads, 0 lets onnxruntime decide")
	pf.String("padding", "", "Tensor padding: trailing or legacy")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	for name, key := range globalFlags {
		// BindPFlag only fails for a nil flag.
		_ = a.v.BindPFlag(key, pf.Lookup(name))
	}

	root.AddCommand(
		newDetectCommand(a),
		newBatchCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup loads settings and builds the logger.
func (a *app) setup() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	s, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New("frcnn-detect", s.LogLevel)
	if err != nil {
		return err
	}
	a.settings = s
	a.logger = logger
	a.logger.Debugw("settings loaded", "config", a.configFile, "processor", s.Processor,
		"mode", s.Mode, "platform", s.Platform, "padding", s.Padding)
	return nil
}

// processors builds every image back-end with the configured options.
func (a *app) processors() (map[imaging.Kind]imaging.Processor, error) {
	opts, err := a.settings.ImagingOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = a.logger
	procs := make(map[imaging.Kind]imaging.Processor, len(imaging.Kinds))
	for _, kind := range imaging.Kinds {
		p, err := imaging.New(kind, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "create %s processor", kind)
		}
		procs[kind] = p
	}
	return procs, nil
}

// newDetector loads the model and wires the pipeline. reg may be nil. The
// returned close function releases the inference session.
func (a *app) newDetector(reg prometheus.Registerer) (*detector.Detector, func() error, error) {
	if a.settings.ModelPath == "" {
		return nil, nil, errors.New("no model given: set --model or FRCNN_MODEL_PATH")
	}

	procs, err := a.processors()
	if err != nil {
		return nil, nil, err
	}
	opts := []detector.Option{detector.WithLogger(a.logger)}
	if reg != nil {
		m, err := detector.NewMetrics(reg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, detector.WithMetrics(m))
	}

	model, err := inference.LoadModel(a.settings.ModelPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := a.settings.InferenceConfig(a.logger)
	if err != nil {
		return nil, nil, err
	}
	sess, err := inference.NewSession(model, cfg)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Infow("model loaded", "path", a.settings.ModelPath, "bytes", len(model),
		"mode", cfg.Mode, "platform", a.settings.Platform)

	d, err := detector.New(sess, procs, opts...)
	if err != nil {
		return nil, nil, multierr.Append(err, sess.Close())
	}
	return d, sess.Close, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "frcnn-detect %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}
