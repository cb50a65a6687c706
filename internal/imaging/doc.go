// Package imaging turns raw image bytes into Faster R-CNN input tensors and
// draws detection results back onto the image.
//
// Every request passes through the same three stages of a Processor:
//
//  1. Preprocess: decode, apply the EXIF orientation, then scale so the
//     shorter edge is TargetSize (800) pixels with bilinear filtering.
//  2. Tensor: pad both dimensions up to a multiple of 32 and lay the pixels
//     out channel-first as blue, green, red with Means subtracted.
//  3. Render: outline each detection, caption it with "label, 0.00" and
//     encode the result as JPEG.
//
// Two interchangeable back-ends implement Processor: KindImaging on
// github.com/disintegration/imaging and github.com/fogleman/gg, and KindBild
// on github.com/anthonynsimon/bild and golang.org/x/image/font. Both produce
// identically shaped frames and tensors.
//
// # Coordinate System
//
// All pixel coordinates are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//
// Padding is added after the last row and column only (PadTrailing), so a
// tensor element at (y, x) and the frame pixel at (x, y) describe the same
// point. PadLegacy reproduces the loop bounds of the original sample for
// comparisons against its output.
//
// # Orientation
//
// Origins 1, 3, 6 and 8 are honored. Every other value, including the
// mirrored origins, is treated as 1.
//
// # Thread Safety
//
// Processors are immutable once built and may be shared between goroutines.
// A Frame belongs to one request; Render never modifies it.
//
// # Error Handling
//
// Preprocess returns *DecodeError for bytes that are not a supported image.
// Render only fails when JPEG encoding fails.
package imaging
