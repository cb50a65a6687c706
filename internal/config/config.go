package config

import (
	"errors"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lucasb-eyer/go-colorful"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ironsheep/frcnn-detect/internal/imaging"
	"github.com/ironsheep/frcnn-detect/internal/inference"
)

// EnvPrefix is prepended to every environment variable, e.g. FRCNN_MODEL_PATH.
const EnvPrefix = "FRCNN"

// Render holds the drawing settings.
type Render struct {
	AccentColor string   `mapstructure:"accent_color"`
	TextColor   string   `mapstructure:"text_color"`
	FontSize    float64  `mapstructure:"font_size"`
	StrokeWidth float64  `mapstructure:"stroke_width"`
	JPEGQuality int      `mapstructure:"jpeg_quality"`
	FontDirs    []string `mapstructure:"font_dirs"`
}

// Capture holds the camera snapshot settings.
type Capture struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Settings is the complete application configuration.
type Settings struct {
	ModelPath   string  `mapstructure:"model_path"`
	ONNXLibrary string  `mapstructure:"onnx_library"`
	Processor   string  `mapstructure:"processor"`
	Mode        string  `mapstructure:"mode"`
	Platform    string  `mapstructure:"platform"`
	Threads     int     `mapstructure:"threads"`
	Padding     string  `mapstructure:"padding"`
	LogLevel    string  `mapstructure:"log_level"`
	Workers     int     `mapstructure:"workers"`
	Render      Render  `mapstructure:"render"`
	Capture     Capture `mapstructure:"capture"`
}

// SetDefaults registers the default of every setting. Viper only maps
// environment variables onto keys it knows, so every key needs one.
func SetDefaults(v *viper.Viper) {
	render := imaging.DefaultOptions().Render

	v.SetDefault("model_path", "")
	v.SetDefault("onnx_library", "")
	v.SetDefault("processor", string(imaging.KindBild))
	v.SetDefault("mode", inference.ModePlatform.String())
	v.SetDefault("platform", "cpu")
	v.SetDefault("threads", 0)
	v.SetDefault("padding", imaging.PadTrailing.String())
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", max(1, runtime.NumCPU()/2))

	v.SetDefault("render.accent_color", render.AccentColor)
	v.SetDefault("render.text_color", render.TextColor)
	v.SetDefault("render.font_size", render.FontSize)
	v.SetDefault("render.stroke_width", render.StrokeWidth)
	v.SetDefault("render.jpeg_quality", render.JPEGQuality)
	v.SetDefault("render.font_dirs", []string{})

	v.SetDefault("capture.url", "")
	v.SetDefault("capture.timeout", 10*time.Second)
}

// New returns a viper instance with defaults and FRCNN_ environment lookup.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadDotEnv copies variables from .env style files into the environment
// without overriding ones already set. Missing files are ignored; with no
// arguments ./.env is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return pkgerrors.Wrapf(err, "load %s", p)
		}
	}
	return nil
}

// Load reads configFile, when given, and returns validated settings. Values
// come from, in increasing priority: defaults, the file, FRCNN_ environment
// variables and any flags bound to v.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, pkgerrors.Wrap(err, "read config file")
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, pkgerrors.Wrap(err, "decode config")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports every invalid setting at once.
func (s *Settings) Validate() error {
	var err error

	if _, e := imaging.ParseKind(s.Processor); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := inference.ParseMode(s.Mode); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := inference.PlatformByName(s.Platform); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := imaging.ParsePadMode(s.Padding); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := zapcore.ParseLevel(s.LogLevel); e != nil {
		err = multierr.Append(err, pkgerrors.Errorf("invalid log_level %q", s.LogLevel))
	}
	if s.Threads < 0 {
		err = multierr.Append(err, pkgerrors.Errorf("threads must not be negative, got %d", s.Threads))
	}
	if s.Workers < 1 {
		err = multierr.Append(err, pkgerrors.Errorf("workers must be at least 1, got %d", s.Workers))
	}

	if _, e := colorful.Hex(s.Render.AccentColor); e != nil {
		err = multierr.Append(err, pkgerrors.Errorf("invalid render.accent_color %q", s.Render.AccentColor))
	}
	if _, e := colorful.Hex(s.Render.TextColor); e != nil {
		err = multierr.Append(err, pkgerrors.Errorf("invalid render.text_color %q", s.Render.TextColor))
	}
	if s.Render.FontSize <= 0 {
		err = multierr.Append(err, pkgerrors.Errorf("render.font_size must be positive, got %v", s.Render.FontSize))
	}
	if s.Render.StrokeWidth <= 0 {
		err = multierr.Append(err, pkgerrors.Errorf("render.stroke_width must be positive, got %v", s.Render.StrokeWidth))
	}
	if s.Render.JPEGQuality < 1 || s.Render.JPEGQuality > 100 {
		err = multierr.Append(err, pkgerrors.Errorf("render.jpeg_quality must be within 1-100, got %d", s.Render.JPEGQuality))
	}
	if s.Capture.Timeout < 0 {
		err = multierr.Append(err, pkgerrors.Errorf("capture.timeout must not be negative, got %v", s.Capture.Timeout))
	}

	return err
}

// ProcessorKind is the configured image back-end.
func (s *Settings) ProcessorKind() (imaging.Kind, error) {
	return imaging.ParseKind(s.Processor)
}

// ImagingOptions converts the settings into processor options.
func (s *Settings) ImagingOptions() (imaging.Options, error) {
	padding, err := imaging.ParsePadMode(s.Padding)
	if err != nil {
		return imaging.Options{}, err
	}

	opts := imaging.Options{
		Padding: padding,
		Render: imaging.RenderOptions{
			AccentColor: s.Render.AccentColor,
			TextColor:   s.Render.TextColor,
			FontSize:    s.Render.FontSize,
			StrokeWidth: s.Render.StrokeWidth,
			JPEGQuality: s.Render.JPEGQuality,
		},
	}
	if len(s.Render.FontDirs) > 0 {
		opts.Render.FontDirs = s.Render.FontDirs
	}
	return opts, nil
}

// InferenceConfig converts the settings into a session configuration.
func (s *Settings) InferenceConfig(logger *zap.SugaredLogger) (inference.Config, error) {
	mode, err := inference.ParseMode(s.Mode)
	if err != nil {
		return inference.Config{}, err
	}
	platform, err := inference.PlatformByName(s.Platform)
	if err != nil {
		return inference.Config{}, err
	}

	return inference.Config{
		Mode:              mode,
		Platform:          platform,
		SharedLibraryPath: s.ONNXLibrary,
		IntraOpThreads:    s.Threads,
		Logger:            logger,
	}, nil
}
