// Package composer renders a scene collection into a paginated PDF, one
// page per scene, with the text block above a reserved image band.
package composer

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"storybook/logging"
	"storybook/metrics"
	"storybook/story"
)

// ImageOutcome says what happened to a page's image band.
type ImageOutcome string

const (
	ImageDrawn        ImageOutcome = "drawn"
	ImageAbsent       ImageOutcome = "absent"
	ImageDecodeFailed ImageOutcome = "decode_failed"
)

// PageResult summarizes one rendered page.
type PageResult struct {
	Index          int          `json:"index"`
	Title          string       `json:"title"`
	LinesDrawn     int          `json:"lines_drawn"`
	LinesTruncated int          `json:"lines_truncated"`
	Image          ImageOutcome `json:"image"`
	ImageBox       Box          `json:"image_box"`
	MissingGlyphs  int          `json:"missing_glyphs"`
	DecodeErr      error        `json:"-"`
}

// Document is a composed PDF and its per-page summary.
type Document struct {
	Bytes []byte
	Pages []PageResult
}

// ImagesDrawn counts pages whose image was placed.
func (d Document) ImagesDrawn() int {
	n := 0
	for _, p := range d.Pages {
		if p.Image == ImageDrawn {
			n++
		}
	}
	return n
}

// Composer renders documents. It holds no per-document state and is safe
// for concurrent use.
type Composer struct {
	layout    Layout
	maxPixels int
	logger    *zap.Logger
	recorder  metrics.Recorder
	now       func() time.Time
}

// Option configures a Composer.
type Option func(*Composer)

// WithLayout replaces the default A4 profile.
func WithLayout(l Layout) Option {
	return func(c *Composer) { c.layout = l }
}

// WithMaxImagePixels bounds the longest side of embedded images. Zero
// disables down-sampling.
func WithMaxImagePixels(n int) Option {
	return func(c *Composer) { c.maxPixels = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder records a compose task per call.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Composer) { c.recorder = metrics.OrNop(r) }
}

// New returns a Composer. It fails only when a custom layout is invalid.
func New(opts ...Option) (*Composer, error) {
	c := &Composer{
		layout:    DefaultLayout(),
		maxPixels: DefaultMaxImagePixels,
		logger:    zap.NewNop(),
		recorder:  metrics.Nop,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.layout.Validate(); err != nil {
		return nil, err
	}
	c.logger = c.logger.With(zap.String("component", "composer"))
	return c, nil
}

// Layout returns the active page profile.
func (c *Composer) Layout() Layout {
	return c.layout
}

// Compose renders scenes, one page each in index order. Image problems are
// reported per page and never fail the document. The input is not
// modified.
func (c *Composer) Compose(scenes []story.Scene) (Document, error) {
	task := metrics.StartTask(metrics.TaskTypeCompose)
	start := time.Now()

	if len(scenes) == 0 {
		c.recorder.RecordTask(task.Fail("empty_document", ErrEmptyDocument.Error()))
		return Document{}, ErrEmptyDocument
	}

	ordered := slices.Clone(scenes)
	slices.SortStableFunc(ordered, func(a, b story.Scene) int {
		return cmp.Compare(a.Index, b.Index)
	})

	doc, err := c.render(ordered)
	if err != nil {
		c.recorder.RecordTask(task.Fail("render_failed", err.Error()))
		c.logger.Error("document composition failed", zap.Int("scenes", len(scenes)), zap.Error(err))
		return Document{}, err
	}

	drawn := doc.ImagesDrawn()
	c.recorder.RecordTask(task.Succeed())
	c.logger.Info("document composed",
		logging.CompositionFields(len(doc.Pages), drawn, len(doc.Pages)-drawn, len(doc.Bytes), time.Since(start))...)
	return doc, nil
}

func (c *Composer) render(scenes []story.Scene) (Document, error) {
	l := c.layout
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: l.PageWidth, Ht: l.PageHeight},
	})
	pdf.SetMargins(l.Margin, l.Margin, l.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("storybook", true)
	pdf.SetCreationDate(c.now())
	registerFonts(pdf)
	glyphs, err := newGlyphCounter()
	if err != nil {
		return Document{}, &CompositionError{Err: err}
	}

	pages := make([]PageResult, 0, len(scenes))
	for _, sc := range scenes {
		page := PageResult{Index: sc.Index, Title: sc.Title}

		pdf.AddPage()
		heading := fmt.Sprintf("%d. %s", sc.Index, sc.Title)
		pdf.SetFont(l.TitleFont, l.TitleStyle, l.TitleSize)
		pdf.Text(l.Margin, l.TitleBaseline(), heading)
		page.MissingGlyphs += glyphs.Missing(heading)

		pdf.SetFont(l.BodyFont, "", l.BodySize)
		lines, baselines, truncated := l.FlowText(sc.Text)
		for i, line := range lines {
			pdf.Text(l.Margin, baselines[i], line)
			page.MissingGlyphs += glyphs.Missing(line)
		}
		page.LinesDrawn = len(lines)
		page.LinesTruncated = truncated
		if page.MissingGlyphs > 0 {
			c.logger.Warn("scene text has characters the font cannot draw",
				append(logging.SceneFields(sc.Index, sc.Title),
					zap.Int("missing_glyphs", page.MissingGlyphs))...)
		}

		if pdf.Err() {
			return Document{}, &CompositionError{Page: sc.Index, Err: pdf.Error()}
		}

		c.placeImage(pdf, sc, len(pages)+1, &page)
		pages = append(pages, page)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Document{}, &CompositionError{Err: err}
	}
	return Document{Bytes: buf.Bytes(), Pages: pages}, nil
}

// placeImage registers the image under its page number: fpdf caches images
// by name, and scene indices are not guaranteed unique here.
func (c *Composer) placeImage(pdf *fpdf.Fpdf, sc story.Scene, pageNo int, page *PageResult) {
	if !sc.HasImage() {
		page.Image = ImageAbsent
		return
	}

	img, err := decodeImage(sc.Image, c.maxPixels)
	if err == nil {
		name := fmt.Sprintf("page-%d", pageNo)
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.png))
		if pdf.Err() {
			err = fmt.Errorf("%w: %v", ErrImageDecode, pdf.Error())
			pdf.ClearError()
		} else {
			box := Fit(c.layout.ImageRegion(), img.width, img.height)
			pdf.ImageOptions(name, box.X, box.Y, box.W, box.H, false, opts, 0, "")
			page.Image = ImageDrawn
			page.ImageBox = box
			return
		}
	}

	page.Image = ImageDecodeFailed
	page.DecodeErr = err
	c.logger.Warn("scene image left blank",
		append(logging.SceneFields(sc.Index, sc.Title),
			zap.Int("image_bytes", len(sc.Image)),
			zap.Error(err))...)
}
