package inference

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Mode selects how the session is accelerated.
type Mode int

const (
	// ModeDefault runs on the CPU execution provider.
	ModeDefault Mode = iota

	// ModePlatform hands the session options to a PlatformConfigurer, which
	// appends the execution provider of the host platform.
	ModePlatform
)

func (m Mode) String() string {
	if m == ModePlatform {
		return "platform"
	}
	return "default"
}

// ParseMode converts "default" or "platform" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ModeDefault, nil
	case "platform":
		return ModePlatform, nil
	default:
		return ModeDefault, errors.Errorf("unknown session mode %q (want default or platform)", s)
	}
}

// PlatformConfigurer adds platform specific execution providers to the
// session options before the session is created.
type PlatformConfigurer func(opts *ort.SessionOptions) error

// CPU leaves the options untouched.
func CPU() PlatformConfigurer {
	return func(*ort.SessionOptions) error { return nil }
}

// CoreML appends the Apple CoreML execution provider with the given flags.
func CoreML(flags uint32) PlatformConfigurer {
	return func(opts *ort.SessionOptions) error {
		return errors.Wrap(opts.AppendExecutionProviderCoreML(flags), "coreml provider")
	}
}

// CUDA appends the CUDA execution provider for one GPU.
func CUDA(deviceID int) PlatformConfigurer {
	return func(opts *ort.SessionOptions) error {
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "cuda provider options")
		}
		defer func() { _ = cuda.Destroy() }()

		if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(deviceID)}); err != nil {
			return errors.Wrap(err, "cuda provider options")
		}
		return errors.Wrap(opts.AppendExecutionProviderCUDA(cuda), "cuda provider")
	}
}

var platforms = map[string]PlatformConfigurer{
	"cpu":    CPU(),
	"coreml": CoreML(0),
	"cuda":   CUDA(0),
}

// Platforms lists the names accepted by PlatformByName.
func Platforms() []string {
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PlatformByName resolves a configurer by name. An empty name means "cpu".
func PlatformByName(name string) (PlatformConfigurer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "cpu"
	}
	p, ok := platforms[name]
	if !ok {
		return nil, errors.Errorf("unknown platform %q (want one of %s)", name, strings.Join(Platforms(), ", "))
	}
	return p, nil
}

// Config controls session construction.
type Config struct {
	Mode Mode

	// Platform is consulted only in ModePlatform. Nil falls back to the CPU.
	Platform PlatformConfigurer

	// SharedLibraryPath points at the ONNX Runtime library. Empty means search
	// the usual install locations.
	SharedLibraryPath string

	// IntraOpThreads bounds the threads one Run may use. Zero keeps the
	// runtime default.
	IntraOpThreads int

	Logger *zap.SugaredLogger
}

func (c Config) logger() *zap.SugaredLogger {
	if c.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return c.Logger
}

// sessionOptions builds the runtime options for c. The caller destroys them.
func (c Config) sessionOptions() (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "session options")
	}

	if c.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(c.IntraOpThreads); err != nil {
			_ = opts.Destroy()
			return nil, errors.Wrap(err, "intra-op threads")
		}
	}

	if c.Mode == ModePlatform && c.Platform != nil {
		if err := c.Platform(opts); err != nil {
			_ = opts.Destroy()
			return nil, err
		}
	}

	return opts, nil
}
