// Package detection decodes the raw output of a Faster R-CNN object detector.
//
// The model returns three parallel outputs: a flattened array of box corners,
// one class index per box and one score per box. Decode pairs them up, drops
// everything scoring below MinConfidence and resolves class names through a
// LabelMap.
//
// # Coordinate System
//
// Box coordinates are pixels of the padded input tensor:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// The tensor is padded only at its right and bottom edges, so a box lines up
// with the resized image it was computed from. Parts of a box that extend into
// the padding fall outside that image and are clipped when drawn.
//
// # Ordering
//
// Results keep the order the model produced. The model performs its own
// non-maximum suppression, so no further filtering or sorting is applied.
package detection
