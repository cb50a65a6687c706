package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/frcnn-detect/internal/inference"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool runs a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unpacks the JSON text content of a successful tool response.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
}

func TestHandleToolsCall_DetectObjects_File(t *testing.T) {
	engine := &stubEngine{out: onePerson()}
	s := newTestServer(t, engine)
	imgPath := createTestImageFile(t, 200, 100, color.RGBA{0, 120, 0, 255})

	for _, processor := range []string{"imaging", "bild"} {
		t.Run(processor, func(t *testing.T) {
			resp := callTool(t, s, "detect_objects", map[string]interface{}{
				"path":      imgPath,
				"processor": processor,
			})

			var result DetectResult
			decodeResult(t, resp, &result)

			if !result.Acquired {
				t.Fatal("expected an acquired image")
			}
			if string(result.Processor) != processor {
				t.Errorf("processor: got %s, want %s", result.Processor, processor)
			}
			if result.Count != 1 || len(result.Detections) != 1 {
				t.Fatalf("detections: got %d (%v), want 1", result.Count, result.Detections)
			}
			if result.Detections[0].Label != "person" {
				t.Errorf("label: got %s, want person", result.Detections[0].Label)
			}
			if result.Width != 1600 || result.Height != 800 {
				t.Errorf("size: got %dx%d, want 1600x800", result.Width, result.Height)
			}
			if result.PaddedWidth != 1600 || result.PaddedHeight != 800 {
				t.Errorf("padded size: got %dx%d, want 1600x800", result.PaddedWidth, result.PaddedHeight)
			}
			if result.MimeType != "image/jpeg" {
				t.Errorf("mime type: got %s", result.MimeType)
			}

			raw, err := base64.StdEncoding.DecodeString(result.ImageBase64)
			if err != nil {
				t.Fatalf("image is not base64: %v", err)
			}
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("image is not JPEG: %v", err)
			}
			if cfg.Width != 1600 || cfg.Height != 800 {
				t.Errorf("jpeg size: got %dx%d", cfg.Width, cfg.Height)
			}
		})
	}

	if s.Busy() {
		t.Error("busy flag must be cleared after a detection")
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache entries: got %d, want 1", s.cache.Len())
	}
}

func TestHandleToolsCall_DetectObjects_Sample(t *testing.T) {
	s := newTestServer(t, &stubEngine{out: onePerson()})

	var result DetectResult
	decodeResult(t, callTool(t, s, "detect_objects", map[string]interface{}{"source": "sample"}), &result)

	// The sample photo is 640x480.
	if result.Width != 1066 || result.Height != 800 {
		t.Errorf("size: got %dx%d, want 1066x800", result.Width, result.Height)
	}
	if result.PaddedWidth != 1088 {
		t.Errorf("padded width: got %d, want 1088", result.PaddedWidth)
	}
}

func TestHandleToolsCall_DetectObjects_EmptyFile(t *testing.T) {
	engine := &stubEngine{out: onePerson()}
	s := newTestServer(t, engine)

	path := filepath.Join(t.TempDir(), "empty.jpg")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	var result DetectResult
	decodeResult(t, callTool(t, s, "detect_objects", map[string]interface{}{"path": path}), &result)

	if result.Acquired {
		t.Error("empty file must not count as an acquired image")
	}
	if engine.count() != 0 {
		t.Error("engine must not run without an image")
	}
	if s.Busy() {
		t.Error("busy flag must be cleared")
	}
}

func TestHandleToolsCall_DetectObjects_Errors(t *testing.T) {
	tests := []struct {
		name     string
		engine   *stubEngine
		args     map[string]interface{}
		wantData string
	}{
		{
			"missing file",
			&stubEngine{out: onePerson()},
			map[string]interface{}{"path": "/nonexistent/photo.jpg"},
			"The PickPhoto method threw an exception",
		},
		{
			"capture not configured",
			&stubEngine{out: onePerson()},
			map[string]interface{}{"source": "capture"},
			"Feature is not supported on the device",
		},
		{
			"unknown source",
			&stubEngine{out: onePerson()},
			map[string]interface{}{"source": "scanner"},
			"scanner",
		},
		{
			"unknown processor",
			&stubEngine{out: onePerson()},
			map[string]interface{}{"processor": "skia"},
			"skia",
		},
		{
			"engine failure",
			&stubEngine{err: &inference.Error{Op: "run", Message: "invalid input dimensions"}},
			map[string]interface{}{"source": "sample"},
			"invalid input dimensions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.engine)
			resp := callTool(t, s, "detect_objects", tt.args)

			if resp.Error == nil {
				t.Fatal("expected an error response")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("code: got %d, want -32000", resp.Error.Code)
			}
			if data, _ := resp.Error.Data.(string); !strings.Contains(data, tt.wantData) {
				t.Errorf("data: got %q, want it to contain %q", data, tt.wantData)
			}
			if s.Busy() {
				t.Error("busy flag must be cleared after a failure")
			}
		})
	}
}

func TestHandleToolsCall_DetectObjects_Busy(t *testing.T) {
	engine := &stubEngine{
		out:     onePerson(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestServer(t, engine)

	first := make(chan *MCPResponse)
	go func() {
		first <- callTool(t, s, "detect_objects", map[string]interface{}{"source": "sample"})
	}()

	select {
	case <-engine.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first detection did not start")
	}
	if !s.Busy() {
		t.Error("server should be busy while a detection runs")
	}

	resp := callTool(t, s, "detect_objects", map[string]interface{}{"source": "sample"})
	if resp.Error == nil {
		t.Error("second detection should be rejected while busy")
	} else if data, _ := resp.Error.Data.(string); data != ErrBusy.Error() {
		t.Errorf("data: got %q, want %q", data, ErrBusy.Error())
	}

	close(engine.release)
	if r := <-first; r.Error != nil {
		t.Errorf("first detection failed: %+v", r.Error)
	}
	if s.Busy() {
		t.Error("busy flag must be cleared")
	}
}

func TestHandleToolsCall_PreprocessImage(t *testing.T) {
	engine := &stubEngine{out: onePerson()}
	s := newTestServer(t, engine)
	imgPath := createTestImageFile(t, 300, 170, color.White)

	var result PreprocessResult
	decodeResult(t, callTool(t, s, "preprocess_image", map[string]interface{}{
		"path":      imgPath,
		"processor": "imaging",
	}), &result)

	if !result.Acquired {
		t.Fatal("expected an acquired image")
	}
	if result.Width != 1411 || result.Height != 800 {
		t.Errorf("size: got %dx%d, want 1411x800", result.Width, result.Height)
	}
	if result.PaddedWidth != 1440 || result.PaddedHeight != 800 {
		t.Errorf("padded size: got %dx%d, want 1440x800", result.PaddedWidth, result.PaddedHeight)
	}
	if result.Orientation != "top-left" {
		t.Errorf("orientation: got %s", result.Orientation)
	}
	if engine.count() != 0 {
		t.Error("preprocess_image must not run the model")
	}
}

func TestHandleToolsCall_PreprocessImage_InvalidImage(t *testing.T) {
	s := newTestServer(t, &stubEngine{})
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	resp := callTool(t, s, "preprocess_image", map[string]interface{}{"path": path})
	if resp.Error == nil {
		t.Fatal("expected an error for a file that is not an image")
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "failed to decode image") {
		t.Errorf("data: got %q", data)
	}
}

func TestHandleToolsCall_ListLabels(t *testing.T) {
	s := newTestServer(t, &stubEngine{})

	var result LabelsResult
	decodeResult(t, callTool(t, s, "list_labels", nil), &result)

	if result.Count != 81 || len(result.Labels) != 81 {
		t.Fatalf("labels: got %d, want 81", result.Count)
	}
	if result.Labels[0] != "__background" || result.Labels[1] != "person" {
		t.Errorf("first labels: got %v", result.Labels[:2])
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := newTestServer(t, &stubEngine{})
	resp := callTool(t, s, "image_crop", map[string]interface{}{})

	if resp.Error == nil {
		t.Fatal("expected an error for an unknown tool")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, &stubEngine{})
	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})

	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected invalid params error, got %+v", resp.Error)
	}
}
