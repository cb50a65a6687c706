package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ironsheep/frcnn-detect/internal/acquire"
	"github.com/ironsheep/frcnn-detect/internal/detection"
	"github.com/ironsheep/frcnn-detect/internal/imaging"
)

// ErrBusy is returned when a detection is requested while another one runs.
var ErrBusy = errors.New("a detection is already in progress")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "detect_objects").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.Infow("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "detect_objects":
		return s.handleDetectObjects(args)
	case "preprocess_image":
		return s.handlePreprocessImage(args)
	case "list_labels":
		return s.handleListLabels(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// imageArgs selects an image and the back-end that processes it.
type imageArgs struct {
	Source    string `json:"source"`
	Path      string `json:"path"`
	URL       string `json:"url"`
	Processor string `json:"processor"`
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

func (s *Server) processor(name string) (imaging.Kind, error) {
	if strings.TrimSpace(name) == "" {
		return s.opts.Processor, nil
	}
	return imaging.ParseKind(name)
}

// loadImage reads the image named by a. A nil slice with a nil error means the
// source produced nothing.
func (s *Server) loadImage(a imageArgs) ([]byte, error) {
	mode, err := acquire.ParseMode(a.Source)
	if err != nil {
		return nil, err
	}
	if a.Source == "" && a.Path != "" {
		mode = acquire.ModeFile
	}

	url := a.URL
	if url == "" {
		url = s.opts.CaptureURL
	}
	src, err := acquire.New(mode, acquire.Options{
		Path:    a.Path,
		Cache:   s.cache,
		URL:     url,
		Timeout: s.opts.CaptureTimeout,
	})
	if err != nil {
		return nil, err
	}

	raw, err := src.Acquire(context.Background())
	if errors.Is(err, acquire.ErrNoImage) {
		return nil, nil
	}
	return raw, err
}

// === Detection Handlers ===

// DetectResult is the detect_objects tool result.
type DetectResult struct {
	// Acquired is false when the source produced no image; nothing else is set.
	Acquired bool `json:"acquired"`

	Processor    imaging.Kind          `json:"processor,omitempty"`
	Count        int                   `json:"count"`
	Detections   []detection.Detection `json:"detections"`
	Width        int                   `json:"width,omitempty"`
	Height       int                   `json:"height,omitempty"`
	PaddedWidth  int                   `json:"padded_width,omitempty"`
	PaddedHeight int                   `json:"padded_height,omitempty"`
	Orientation  string                `json:"orientation,omitempty"`
	ElapsedMS    int64                 `json:"elapsed_ms"`
	ImageBase64  string                `json:"image_base64,omitempty"`
	MimeType     string                `json:"mime_type,omitempty"`
}

func (s *Server) handleDetectObjects(args json.RawMessage) (interface{}, error) {
	var a imageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	kind, err := s.processor(a.Processor)
	if err != nil {
		return nil, err
	}

	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	raw, err := s.loadImage(a)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &DetectResult{Acquired: false, Detections: []detection.Detection{}}, nil
	}

	out := <-s.detector.DetectAsync(raw, kind)
	if out.Err != nil {
		return nil, out.Err
	}
	res := out.Result

	return &DetectResult{
		Acquired:     true,
		Processor:    res.Processor,
		Count:        len(res.Detections),
		Detections:   res.Detections,
		Width:        res.Width,
		Height:       res.Height,
		PaddedWidth:  res.PaddedWidth,
		PaddedHeight: res.PaddedHeight,
		Orientation:  res.Orientation.String(),
		ElapsedMS:    res.Timings.Total().Milliseconds(),
		ImageBase64:  base64.StdEncoding.EncodeToString(res.Image),
		MimeType:     "image/jpeg",
	}, nil
}

// PreprocessResult is the preprocess_image tool result.
type PreprocessResult struct {
	Acquired     bool         `json:"acquired"`
	Processor    imaging.Kind `json:"processor,omitempty"`
	Width        int          `json:"width,omitempty"`
	Height       int          `json:"height,omitempty"`
	PaddedWidth  int          `json:"padded_width,omitempty"`
	PaddedHeight int          `json:"padded_height,omitempty"`
	Orientation  string       `json:"orientation,omitempty"`
}

func (s *Server) handlePreprocessImage(args json.RawMessage) (interface{}, error) {
	var a imageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	kind, err := s.processor(a.Processor)
	if err != nil {
		return nil, err
	}

	raw, err := s.loadImage(a)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &PreprocessResult{Acquired: false}, nil
	}

	frame, tensor, err := s.detector.Prepare(raw, kind)
	if err != nil {
		return nil, err
	}
	return &PreprocessResult{
		Acquired:     true,
		Processor:    kind,
		Width:        frame.Width(),
		Height:       frame.Height(),
		PaddedWidth:  tensor.Width(),
		PaddedHeight: tensor.Height(),
		Orientation:  frame.Orientation().String(),
	}, nil
}

// LabelsResult is the list_labels tool result.
type LabelsResult struct {
	Count  int      `json:"count"`
	Labels []string `json:"labels"`
}

func (s *Server) handleListLabels(json.RawMessage) (interface{}, error) {
	labels := s.detector.Labels()
	return &LabelsResult{
		Count:  len(labels),
		Labels: append([]string(nil), labels...),
	}, nil
}
