package composer

import (
	"errors"
	"fmt"

	"storybook/story"
)

// Cm is one centimetre in points.
const Cm = 72.0 / 2.54

// A4 in points.
const (
	A4Width  = 595.28
	A4Height = 841.89
)

// Layout is a page profile. All lengths are in points; vertical positions
// are measured down from the top edge of the page.
type Layout struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64

	TitleFont  string
	TitleStyle string
	TitleSize  float64

	BodyFont string
	BodySize float64
	// BodyOffset is the distance from the title baseline to the first body
	// baseline.
	BodyOffset  float64
	LineStep    float64
	WrapColumns int

	// ImageHeight is the height of the reserved band above the bottom
	// margin. It spans the full text width.
	ImageHeight float64
}

// DefaultLayout is the A4 storybook profile.
func DefaultLayout() Layout {
	return Layout{
		PageWidth:   A4Width,
		PageHeight:  A4Height,
		Margin:      2 * Cm,
		TitleFont:   FontFamily,
		TitleStyle:  "B",
		TitleSize:   16,
		BodyFont:    FontFamily,
		BodySize:    11,
		BodyOffset:  1.2 * Cm,
		LineStep:    14,
		WrapColumns: 95,
		ImageHeight: 10 * Cm,
	}
}

// Validate rejects profiles that cannot hold a title, a line of text and
// an image band.
func (l Layout) Validate() error {
	switch {
	case l.PageWidth <= 0 || l.PageHeight <= 0:
		return errors.New("composer: page size must be positive")
	case l.Margin < 0 || 2*l.Margin >= l.PageWidth:
		return fmt.Errorf("composer: margin %.2f does not fit page width %.2f", l.Margin, l.PageWidth)
	case l.LineStep <= 0 || l.WrapColumns < 1:
		return errors.New("composer: line step and wrap columns must be positive")
	case l.ImageHeight <= 0:
		return errors.New("composer: image band height must be positive")
	case l.TitleBaseline()+l.BodyOffset > l.TextFloor():
		return errors.New("composer: image band leaves no room for body text")
	}
	return nil
}

// TitleBaseline is the baseline of the page title.
func (l Layout) TitleBaseline() float64 {
	return l.Margin
}

// TextFloor is the lowest baseline a body line after the first may use.
func (l Layout) TextFloor() float64 {
	return l.PageHeight - l.Margin - l.ImageHeight
}

// ImageRegion is the reserved band: full text width, anchored on the
// bottom and left margins.
func (l Layout) ImageRegion() Box {
	return Box{
		X: l.Margin,
		Y: l.PageHeight - l.Margin - l.ImageHeight,
		W: l.PageWidth - 2*l.Margin,
		H: l.ImageHeight,
	}
}

// FlowText wraps text to the profile's column width and positions the
// lines. The first line is always placed; later lines stop once their
// baseline would fall below TextFloor, and the rest are counted as
// truncated.
func (l Layout) FlowText(text string) (lines []string, baselines []float64, truncated int) {
	wrapped := story.Wrap(text, l.WrapColumns)
	y := l.TitleBaseline() + l.BodyOffset
	floor := l.TextFloor()

	for i, line := range wrapped {
		if i > 0 && y > floor {
			return lines, baselines, len(wrapped) - i
		}
		lines = append(lines, line)
		baselines = append(baselines, y)
		y += l.LineStep
	}
	return lines, baselines, 0
}

// Box is a rectangle in points, Y measured from the top of the page.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Fit scales a w×h image uniformly into region, touching it on the
// constraining side, and anchors it at the region's bottom-left corner.
func Fit(region Box, w, h int) Box {
	if w <= 0 || h <= 0 || region.Empty() {
		return Box{}
	}
	ratio := float64(w) / float64(h)

	var dw, dh float64
	if region.W/region.H > ratio {
		dh = region.H
		dw = dh * ratio
	} else {
		dw = region.W
		dh = dw / ratio
	}
	return Box{
		X: region.X,
		Y: region.Y + region.H - dh,
		W: dw,
		H: dh,
	}
}
