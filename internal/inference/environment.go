package inference

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// LibraryEnv overrides the shared library search when set.
const LibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// libraryName is the ONNX Runtime file name for the current OS.
func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", errors.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

// libraryDirs are searched in order when no path is configured.
var libraryDirs = []string{
	"/usr/local/lib",
	"/usr/lib",
	"/opt/homebrew/lib",
	"/opt/onnxruntime/lib",
	"/opt/onnxruntime/cpu/lib",
}

// FindLibrary returns the ONNX Runtime shared library to load. An explicit
// path wins, then LibraryEnv, then the first existing file in the usual
// install directories.
func FindLibrary(explicit string) (string, error) {
	for _, p := range []string{explicit, os.Getenv(LibraryEnv)} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return "", errors.Wrapf(err, "onnx runtime library %s", p)
		}
		return p, nil
	}

	name, err := libraryName()
	if err != nil {
		return "", err
	}
	for _, dir := range libraryDirs {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.Errorf("%s not found; set onnx_library or %s", name, LibraryEnv)
}

// The runtime environment is process wide. It is created by the first session
// and destroyed when the last one closes.
var env struct {
	mu   sync.Mutex
	refs int
}

func acquireEnvironment(libraryPath string) error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.refs == 0 && !ort.IsInitialized() {
		path, err := FindLibrary(libraryPath)
		if err != nil {
			return err
		}
		ort.SetSharedLibraryPath(path)
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "init onnx runtime")
		}
	}
	env.refs++
	return nil
}

func releaseEnvironment() error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.refs == 0 {
		return nil
	}
	env.refs--
	if env.refs == 0 && ort.IsInitialized() {
		return errors.Wrap(ort.DestroyEnvironment(), "destroy onnx runtime")
	}
	return nil
}
