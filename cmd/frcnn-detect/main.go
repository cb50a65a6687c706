// Command frcnn-detect finds objects in photos with a Faster R-CNN ONNX model.
//
// It runs one image (detect), a directory of images (batch) or an MCP server
// over stdio (serve). Settings come from an optional YAML file, FRCNN_
// environment variables (also read from ./.env) and flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
