// Package acquire obtains the raw bytes of an image to analyze.
//
// There are three sources: the bundled sample photo, a file picked from local
// storage and a still captured from a camera's HTTP snapshot endpoint. Every
// failure is reported as an *Error whose Message is suitable for showing to a
// user; a source that completes without an image returns ErrNoImage.
package acquire
