package layout

import (
	"strconv"
	"strings"
)

// This file defines unit-safe types and helpers for font sizes and coordinates.
// The pipeline works in image pixels; the canvas backend maps 1 px to 1 mm.

// Unit represents the original unit of a length value as written in the manifest.
type Unit int

const (
	UnitNone Unit = iota // bare numbers, treated as pixels
	UnitPX               // pixels
	UnitPT               // points
	UnitMM               // millimeters
)

// Conversion constants between pt and mm.
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitPX:
		return "px"
	case UnitPT:
		return "pt"
	case UnitMM:
		return "mm"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// ToPX converts the length to image pixels.
func (l Length) ToPX() float64 {
	if l.Unit == UnitPT {
		return l.Value * PtToMm
	}
	return l.Value
}

// ToPT converts the length to points, as expected by font faces.
func (l Length) ToPT() float64 {
	if l.Unit == UnitPT {
		return l.Value
	}
	return l.Value * MmToPt
}

// PxToPt returns the font size in points that renders size pixels tall at one pixel per mm.
func PxToPt(size float64) float64 { return Length{Value: size, Unit: UnitPX}.ToPT() }

// ParseRawLengthStr parses a manifest length string preserving its unit.
func ParseRawLengthStr(value string) Length {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{Value: 0, Unit: UnitNone}
	}
	unit := UnitNone
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"px", UnitPX}, {"pt", UnitPT}, {"mm", UnitMM}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{Value: 0, Unit: UnitNone}
	}
	return Length{Value: f, Unit: unit}
}
