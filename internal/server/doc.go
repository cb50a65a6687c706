// Package server implements the MCP (Model Context Protocol) server for object detection.
//
// This package provides a JSON-RPC 2.0 server that exposes the detection pipeline
// through the MCP protocol, so MCP-compatible clients can find objects in photos.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - detect_objects: Run the full pipeline and return detections plus the annotated JPEG
//   - preprocess_image: Report the resized and padded sizes of an image
//   - list_labels: Enumerate the COCO labels
//
// Images come from the bundled sample, a file or a camera snapshot URL. File
// bytes are cached by path for a few minutes and re-read as soon as the
// file's modification time or size changes.
//
// Only one detection runs at a time. A detect_objects call made while another
// is in progress fails with ErrBusy; the busy state is cleared however the
// running call ends.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A source that yields no image is not an error: the result has "acquired": false.
//
// # Usage
//
//	srv, err := server.New(det, server.Options{Processor: imaging.KindBild})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
