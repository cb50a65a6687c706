package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageProperties are the arguments shared by the tools that read an image.
func imageProperties() map[string]interface{} {
	return map[string]interface{}{
		"source": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"sample", "file", "capture"},
			"description": "Where the image comes from: the bundled sample photo, a file (path) or a camera snapshot URL (url). Defaults to file when path is given, otherwise sample.",
		},
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file (source=file)",
		},
		"url": map[string]interface{}{
			"type":        "string",
			"description": "Snapshot URL of the camera (source=capture). Defaults to the configured capture URL.",
		},
		"processor": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"imaging", "bild"},
			"description": "Image library used to decode, resize and draw. Defaults to the configured processor.",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: "detect_objects",
			Description: "Detect objects in an image with a Faster R-CNN model. Returns every detection with confidence of at least 0.7 " +
				"(COCO label, score and box in resized-image pixels) and the resized image with boxes drawn on it as base64-encoded JPEG.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageProperties(),
			},
		},
		{
			Name: "preprocess_image",
			Description: "Load an image the way detect_objects does without running the model. Returns the orientation applied, " +
				"the size after scaling the shorter edge to 800 pixels and the padded model input size.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageProperties(),
			},
		},
		{
			Name:        "list_labels",
			Description: "List the object labels the model can report, indexed by class id.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
