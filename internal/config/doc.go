// Package config loads application settings with viper.
//
// Settings come from an optional YAML file, FRCNN_ prefixed environment
// variables (a .env file is honored) and command line flags.
//
// Example config.yaml:
//
//	model_path: /models/FasterRCNN-10.onnx
//	processor: imaging
//	mode: platform
//	platform: cuda
//	render:
//	  accent_color: "#00FF00"
//	capture:
//	  url: http://camera.local/snapshot.jpg
//	  timeout: 5s
package config
