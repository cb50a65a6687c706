// Package detector runs the object detection pipeline for single requests.
//
// A request moves through five stages in a fixed order: the loader decodes and
// resizes the image, the tensor builder pads it into the model input, the
// engine runs the model, the postprocessor keeps confident boxes and the
// renderer draws them. Detect does this synchronously; DetectAsync and Batch
// move whole requests onto background goroutines.
package detector
