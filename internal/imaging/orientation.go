package imaging

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF origin tag (0x0112) of an encoded image. The name of
// each constant says where row 0 and column 0 of the stored pixels belong.
type Orientation int

const (
	// OriginTopLeft needs no correction.
	OriginTopLeft Orientation = 1

	// OriginBottomRight is stored upside down and needs a 180° turn.
	OriginBottomRight Orientation = 3

	// OriginRightTop needs a 90° clockwise turn.
	OriginRightTop Orientation = 6

	// OriginLeftBottom needs a 270° clockwise turn.
	OriginLeftBottom Orientation = 8
)

func (o Orientation) String() string {
	switch o {
	case OriginTopLeft:
		return "top-left"
	case OriginBottomRight:
		return "bottom-right"
	case OriginRightTop:
		return "right-top"
	case OriginLeftBottom:
		return "left-bottom"
	default:
		return "unsupported"
	}
}

// ReadOrientation returns the supported origin recorded in raw's EXIF data.
//
// Missing or unreadable EXIF data and the mirrored origins (2, 4, 5, 7) all
// yield OriginTopLeft: the image is used as stored.
func ReadOrientation(raw []byte) Orientation {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil || x == nil {
		return OriginTopLeft
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OriginTopLeft
	}
	v, err := tag.Int(0)
	if err != nil {
		return OriginTopLeft
	}

	switch o := Orientation(v); o {
	case OriginBottomRight, OriginRightTop, OriginLeftBottom:
		return o
	default:
		return OriginTopLeft
	}
}
