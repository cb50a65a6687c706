package imaging

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"
)

// BundledFontName is reported by ResolveFont when no system font was usable.
const BundledFontName = "goregular (bundled)"

// DefaultFontDirs are the usual system font locations on Linux, Android,
// macOS and Windows.
var DefaultFontDirs = []string{
	"/usr/share/fonts",
	"/usr/local/share/fonts",
	"/system/fonts",
	"/Library/Fonts",
	`C:\Windows\Fonts`,
}

// ResolveFont returns the first TrueType font found under dirs, walking each
// directory in lexical order. Unreadable or unparsable files are skipped.
// When none of the directories yields a font, the Go Regular font compiled
// into the binary is returned instead.
func ResolveFont(dirs []string) (*truetype.Font, string, error) {
	for _, dir := range dirs {
		if f, name := findFont(dir); f != nil {
			return f, name, nil
		}
	}

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to parse bundled font")
	}
	return f, BundledFontName, nil
}

func findFont(dir string) (*truetype.Font, string) {
	var (
		found *truetype.Font
		name  string
	)

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".ttf") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f, err := truetype.Parse(data)
		if err != nil {
			return nil
		}

		found, name = f, path
		return fs.SkipAll
	})

	return found, name
}
