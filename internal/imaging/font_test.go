package imaging

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/image/font/gofont/gobold"

	"github.com/ironsheep/frcnn-detect/internal/detection"
)

func TestResolveFont_FallsBackToBundled(t *testing.T) {
	f, name, err := ResolveFont([]string{t.TempDir(), "/nonexistent/fonts"})
	require.NoError(t, err)
	assert.NotNil(t, f)
	assert.Equal(t, BundledFontName, name)
}

func TestResolveFont_NoDirectories(t *testing.T) {
	f, name, err := ResolveFont(nil)
	require.NoError(t, err)
	assert.NotNil(t, f)
	assert.Equal(t, BundledFontName, name)
}

func TestResolveFont_FindsSystemFont(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "truetype", "go")
	require.NoError(t, os.MkdirAll(nested, 0755))

	want := filepath.Join(nested, "GoBold.TTF")
	require.NoError(t, os.WriteFile(want, gobold.TTF, 0644))

	f, name, err := ResolveFont([]string{t.TempDir(), dir})
	require.NoError(t, err)
	assert.NotNil(t, f)
	assert.Equal(t, want, name)
}

func TestResolveFont_SkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-broken.ttf"), []byte("not a font"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), gobold.TTF, 0644))

	good := filepath.Join(dir, "b-good.ttf")
	require.NoError(t, os.WriteFile(good, gobold.TTF, 0644))

	_, name, err := ResolveFont([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, good, name)
}

func TestNew_ResolvesFontOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "font.ttf")
	require.NoError(t, os.WriteFile(path, gobold.TTF, 0644))

	core, logs := observer.New(zapcore.DebugLevel)
	opts := DefaultOptions()
	opts.Render.FontDirs = []string{dir}
	opts.Logger = zap.New(core).Sugar()
	p, err := New(KindBild, opts)
	require.NoError(t, err)

	entries := logs.FilterMessage("caption font resolved").All()
	require.Len(t, entries, 1)
	assert.Equal(t, path, entries[0].ContextMap()["font"])
	assert.Equal(t, "bild", entries[0].ContextMap()["processor"])

	// Removing the file later does not affect the processor.
	require.NoError(t, os.Remove(path))
	frame := FrameFromImage(createInMemoryImage(40, 30, color.White))
	_, err = p.Render(frame, []detection.Detection{{Label: "person", Confidence: 0.9}})
	assert.NoError(t, err)
	assert.Len(t, logs.FilterMessage("caption font resolved").All(), 1)
}
