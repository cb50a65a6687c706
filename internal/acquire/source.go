package acquire

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

//go:embed assets/demo.jpg
var demoImage []byte

// ErrNoImage means the source finished without producing an image, like a
// dismissed photo picker. Callers treat it as a no-op rather than a failure.
var ErrNoImage = errors.New("no image acquired")

// Source produces the raw bytes of one image.
type Source interface {
	Acquire(ctx context.Context) ([]byte, error)
}

// Messages carried by Error.
const (
	MessageUnsupported = "Feature is not supported on the device"
	MessagePermission  = "Permissions not granted"
)

// Error reports why an image could not be acquired.
type Error struct {
	// Op names the acquisition method, e.g. "PickPhoto".
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func unsupported(op string, cause error) *Error {
	return &Error{Op: op, Message: MessageUnsupported, Cause: cause}
}

func permissionDenied(op string, cause error) *Error {
	return &Error{Op: op, Message: MessagePermission, Cause: cause}
}

func failed(op string, cause error) *Error {
	return &Error{Op: op, Message: fmt.Sprintf("The %s method threw an exception", op), Cause: cause}
}

// Mode selects one of the acquisition sources.
type Mode string

const (
	ModeSample  Mode = "sample"
	ModeFile    Mode = "file"
	ModeCapture Mode = "capture"
)

// Modes lists every acquisition mode.
var Modes = []Mode{ModeSample, ModeFile, ModeCapture}

// ParseMode converts a name into a Mode. An empty name is ModeSample.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeSample, nil
	case ModeSample, ModeFile, ModeCapture:
		return m, nil
	default:
		return "", errors.Errorf("unknown image source %q (want sample, file or capture)", s)
	}
}

// Options carries what the file and capture sources need.
type Options struct {
	// Path is the file read by ModeFile.
	Path string

	// Cache, when set, serves repeated ModeFile reads from memory.
	Cache *Cache

	// URL is the snapshot endpoint fetched by ModeCapture.
	URL string

	// Timeout bounds one capture request. Zero means DefaultCaptureTimeout.
	Timeout time.Duration
}

// New returns the Source for mode.
func New(mode Mode, opts Options) (Source, error) {
	switch mode {
	case ModeSample, "":
		return Sample(), nil
	case ModeFile:
		return &FileSource{Path: opts.Path, Cache: opts.Cache}, nil
	case ModeCapture:
		return &CaptureSource{URL: opts.URL, Timeout: opts.Timeout}, nil
	default:
		return nil, errors.Errorf("unknown image source %q", mode)
	}
}

type sampleSource struct{}

// Sample returns the bundled demo photo, a 640x480 JPEG of a person.
func Sample() Source { return sampleSource{} }

func (sampleSource) Acquire(context.Context) ([]byte, error) {
	return append([]byte(nil), demoImage...), nil
}
