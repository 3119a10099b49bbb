package composer

import (
	"sync"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
)

// FontFamily is the embedded UTF-8 family registered on every document.
const FontFamily = "Go"

var (
	coverageOnce sync.Once
	coverage     *sfnt.Font
	coverageErr  error
)

func registerFonts(pdf *fpdf.Fpdf) {
	pdf.AddUTF8FontFromBytes(FontFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(FontFamily, "B", gobold.TTF)
}

// glyphCounter reports runes the embedded family cannot draw. The sfnt
// Buffer is not shareable, so each render gets its own counter.
type glyphCounter struct {
	font *sfnt.Font
	buf  sfnt.Buffer
}

func newGlyphCounter() (*glyphCounter, error) {
	coverageOnce.Do(func() {
		coverage, coverageErr = sfnt.Parse(goregular.TTF)
	})
	if coverageErr != nil {
		return nil, coverageErr
	}
	return &glyphCounter{font: coverage}, nil
}

// Missing counts the runes in s without a glyph. Control characters are
// never drawn and are not counted.
func (g *glyphCounter) Missing(s string) int {
	n := 0
	for _, r := range s {
		if r < 0x20 {
			continue
		}
		idx, err := g.font.GlyphIndex(&g.buf, r)
		if err != nil || idx == 0 {
			n++
		}
	}
	return n
}
