// Package exifmeta extracts the capture metadata a verification pass cares
// about: camera identity, capture time, GPS position and editing-software
// signatures.
package exifmeta

import (
	"bytes"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/civicfix/verification-service/pkg/geo"
)

// Metadata is the subset of EXIF data relevant to verification. A zero value
// with Present=false means the image carries no usable EXIF block at all.
type Metadata struct {
	Present  bool
	Make     string
	Model    string
	Software string
	Taken    *time.Time
	GPS      *geo.Coordinate
}

// HasCameraInfo reports whether both camera make and model are recorded.
func (m Metadata) HasCameraInfo() bool {
	return m.Make != "" && m.Model != ""
}

// Known editing-tool signatures found in the EXIF Software tag.
var editingSoftware = []string{"photoshop", "gimp", "lightroom", "snapseed", "vsco"}

// EditedWith returns the editing tool name if the Software tag matches a
// known photo editor, or "" otherwise.
func (m Metadata) EditedWith() string {
	lower := strings.ToLower(m.Software)
	for _, tool := range editingSoftware {
		if strings.Contains(lower, tool) {
			return m.Software
		}
	}
	return ""
}

// Extract parses EXIF metadata from raw image bytes. Images without an EXIF
// block return a zero Metadata rather than an error; absence is a signal the
// caller scores, not a failure.
func Extract(data []byte) Metadata {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return Metadata{}
	}

	m := Metadata{Present: true}

	if tag, err := x.Get(exif.Make); err == nil {
		if v, err := tag.StringVal(); err == nil {
			m.Make = strings.TrimSpace(v)
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil {
			m.Model = strings.TrimSpace(v)
		}
	}
	if tag, err := x.Get(exif.Software); err == nil {
		if v, err := tag.StringVal(); err == nil {
			m.Software = strings.TrimSpace(v)
		}
	}
	if taken, err := x.DateTime(); err == nil {
		m.Taken = &taken
	}
	if lat, lng, err := x.LatLong(); err == nil {
		c := geo.Coordinate{Latitude: lat, Longitude: lng}
		if c.Valid() {
			m.GPS = &c
		}
	}

	return m
}
