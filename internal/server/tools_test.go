package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"detect_objects",
		"preprocess_image",
		"list_labels",
	}

	if len(tools) != len(expectedTools) {
		t.Fatalf("tool count: got %d, want %d", len(tools), len(expectedTools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema.type: got %v, want object", tool.InputSchema["type"])
			}
			if _, ok := tool.InputSchema["properties"].(map[string]interface{}); !ok {
				t.Error("InputSchema.properties should be a map")
			}
		})
	}
}

func TestToolDefinitions_ImageArguments(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		if tool.Name == "list_labels" {
			continue
		}
		props := tool.InputSchema["properties"].(map[string]interface{})
		for _, arg := range []string{"source", "path", "url", "processor"} {
			if _, ok := props[arg]; !ok {
				t.Errorf("%s: missing argument %s", tool.Name, arg)
			}
		}

		source := props["source"].(map[string]interface{})
		enum, ok := source["enum"].([]string)
		if !ok || len(enum) != 3 {
			t.Errorf("%s: source enum: got %v", tool.Name, source["enum"])
		}
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(t, &stubEngine{})
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: 1})

	if resp == nil {
		t.Fatal("handleToolsList returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(toolsList) != len(GetToolDefinitions()) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(GetToolDefinitions()))
	}
}
