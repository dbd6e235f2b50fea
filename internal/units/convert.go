// Package units converts between sale formats and base-unit stock counts.
package units

import (
	"errors"
	"fmt"
	"strings"
)

// Format enumerates the physical sale formats.
type Format string

const (
	// FormatTablet is the base unit (tablet, capsule, piece).
	FormatTablet Format = "tablet"
	// FormatBlister is one blister strip.
	FormatBlister Format = "blister"
	// FormatBox is one full box.
	FormatBox Format = "box"
)

// Formats lists every format, largest first.
var Formats = []Format{FormatBox, FormatBlister, FormatTablet}

// ErrUnknownFormat indicates a format string outside the supported set.
var ErrUnknownFormat = errors.New("units: unknown format")

// Packaging holds the packaging factors of a lot.
type Packaging struct {
	UnitsPerBlister int `json:"units_per_blister"`
	BlistersPerBox  int `json:"blisters_per_box"`
}

// Normalize coerces non-positive factors to 1.
func (p Packaging) Normalize() Packaging {
	if p.UnitsPerBlister <= 0 {
		p.UnitsPerBlister = 1
	}
	if p.BlistersPerBox <= 0 {
		p.BlistersPerBox = 1
	}
	return p
}

// UnitsPerBox returns base units contained in one box.
func (p Packaging) UnitsPerBox() int {
	n := p.Normalize()
	return n.UnitsPerBlister * n.BlistersPerBox
}

// Breakdown is a stock count split into physical units.
type Breakdown struct {
	Boxes    int `json:"boxes"`
	Blisters int `json:"blisters"`
	Tablets  int `json:"tablets"`
}

// Total recomposes the breakdown into base units.
func (b Breakdown) Total(p Packaging) int {
	n := p.Normalize()
	return b.Boxes*n.UnitsPerBox() + b.Blisters*n.UnitsPerBlister + b.Tablets
}

// ToPhysical splits total base units into boxes, loose blisters and loose tablets.
// Negative totals are treated as zero.
func ToPhysical(total int, p Packaging) Breakdown {
	if total <= 0 {
		return Breakdown{}
	}
	n := p.Normalize()
	perBox := n.UnitsPerBox()
	boxes := total / perBox
	rest := total % perBox
	return Breakdown{
		Boxes:    boxes,
		Blisters: rest / n.UnitsPerBlister,
		Tablets:  rest % n.UnitsPerBlister,
	}
}

// ConversionFactor returns how many base units one unit of format holds.
func ConversionFactor(f Format, p Packaging) int {
	n := p.Normalize()
	switch f {
	case FormatBlister:
		return n.UnitsPerBlister
	case FormatBox:
		return n.UnitsPerBox()
	default:
		return 1
	}
}

// ParseFormat accepts the English names and the document vocabulary
// (tableta, blister, caja).
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tablet", "tableta", "unidad":
		return FormatTablet, nil
	case "blister":
		return FormatBlister, nil
	case "box", "caja":
		return FormatBox, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return f == FormatTablet || f == FormatBlister || f == FormatBox
}
