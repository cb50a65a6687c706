// Package inference runs a Faster R-CNN ONNX model through ONNX Runtime.
//
// A Session is built once from the model bytes and reused for every request.
// Config.Mode chooses between the CPU provider and a platform specific one
// (CoreML, CUDA) supplied as a PlatformConfigurer.
package inference
