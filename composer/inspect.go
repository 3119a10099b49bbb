package composer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when Inspect cannot parse its input.
var ErrNotPDF = errors.New("composer: not a readable PDF")

// PageText is the text recovered from one page.
type PageText struct {
	// Number is 1-indexed.
	Number int
	Text   string
	Err    error
}

// Inspection is what Inspect reads back from a PDF.
type Inspection struct {
	Pages []PageText
}

// PageCount returns the number of pages in the document.
func (in *Inspection) PageCount() int {
	return len(in.Pages)
}

// Text joins the page texts with blank lines.
func (in *Inspection) Text() string {
	parts := make([]string, 0, len(in.Pages))
	for _, p := range in.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Inspect parses a PDF and extracts the plain text of each page. It is
// used to check exported documents; a page whose text cannot be read is
// reported in PageText.Err rather than failing the whole call.
func Inspect(data []byte) (*Inspection, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrNotPDF)
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return inspectReader(r), nil
}

// InspectFile is Inspect for a file on disk.
func InspectFile(path string) (*Inspection, error) {
	if path == "" {
		return nil, errors.New("composer: empty PDF path")
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	defer f.Close()
	return inspectReader(r), nil
}

func inspectReader(r *pdf.Reader) *Inspection {
	total := r.NumPage()
	in := &Inspection{Pages: make([]PageText, 0, total)}

	// ledongthuc/pdf pages are 1-indexed.
	for i := 1; i <= total; i++ {
		page := PageText{Number: i}
		p := r.Page(i)
		if p.V.IsNull() {
			in.Pages = append(in.Pages, page)
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			page.Err = fmt.Errorf("page %d: %w", i, err)
		}
		page.Text = strings.TrimSpace(text)
		in.Pages = append(in.Pages, page)
	}
	return in
}
