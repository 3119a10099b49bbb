package composer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/image/bmp"

	"storybook/metrics"
	"storybook/story"
)

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func encodeGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testImage(w, h), nil); err != nil {
		t.Fatalf("gif.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func encodeBMP(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("bmp.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func synthesized(t *testing.T, n int) []story.Scene {
	t.Helper()
	scenes, err := story.Synthesize(story.Params{
		Idea:       "A girl finds a door",
		Genre:      story.GenreFantasy,
		Tone:       story.ToneWhimsical,
		Audience:   story.AudienceKids,
		SceneCount: n,
		ArtStyle:   story.ArtStyleCartoon,
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	return scenes
}

func newComposer(t *testing.T, opts ...Option) *Composer {
	t.Helper()
	c, err := New(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestCompose_EmptyDocument(t *testing.T) {
	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
	c := newComposer(t, WithRecorder(store))

	for _, scenes := range [][]story.Scene{nil, {}} {
		doc, err := c.Compose(scenes)
		if !errors.Is(err, ErrEmptyDocument) {
			t.Fatalf("Compose(%v) error = %v, want ErrEmptyDocument", scenes, err)
		}
		if doc.Bytes != nil || doc.Pages != nil {
			t.Errorf("Compose() returned partial output: %d bytes, %d pages", len(doc.Bytes), len(doc.Pages))
		}
	}
	if err := ErrEmptyDocument; err.Error() != "empty document" {
		t.Errorf("ErrEmptyDocument = %q", err)
	}

	m := store.GetTaskMetrics()
	if got := m.ByType[metrics.TaskTypeCompose].Failures["empty_document"]; got != 2 {
		t.Errorf("empty_document failures = %d, want 2", got)
	}
}

func TestCompose_OnePagePerSceneRegardlessOfImages(t *testing.T) {
	for n := 3; n <= 5; n++ {
		t.Run(fmt.Sprintf("scenes_%d", n), func(t *testing.T) {
			scenes := synthesized(t, n)
			scenes[0].Image = encodePNG(t, 64, 64)
			if n > 3 {
				scenes[3].Image = []byte{}
			}

			doc, err := newComposer(t).Compose(scenes)
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if len(doc.Pages) != n {
				t.Fatalf("len(Pages) = %d, want %d", len(doc.Pages), n)
			}

			in, err := Inspect(doc.Bytes)
			if err != nil {
				t.Fatalf("Inspect() error = %v", err)
			}
			if in.PageCount() != n {
				t.Errorf("PDF has %d pages, want %d", in.PageCount(), n)
			}
		})
	}
}

func TestCompose_PageOrderAndText(t *testing.T) {
	scenes := synthesized(t, 5)
	shuffled := []story.Scene{scenes[3], scenes[0], scenes[4], scenes[2], scenes[1]}

	doc, err := newComposer(t).Compose(shuffled)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if shuffled[0].Index != 4 {
		t.Error("Compose() reordered the caller's slice")
	}

	in, err := Inspect(doc.Bytes)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	for i, page := range in.Pages {
		sc := scenes[i]
		if doc.Pages[i].Index != sc.Index || doc.Pages[i].Title != sc.Title {
			t.Errorf("Pages[%d] = %d %q, want %d %q", i, doc.Pages[i].Index, doc.Pages[i].Title, sc.Index, sc.Title)
		}
		heading := fmt.Sprintf("%d. %s", sc.Index, sc.Title)
		titleAt := strings.Index(page.Text, heading)
		if titleAt < 0 {
			t.Errorf("page %d text %q is missing heading %q", page.Number, page.Text, heading)
			continue
		}
		bodyAt := strings.Index(page.Text, "Based on the idea")
		if bodyAt < titleAt {
			t.Errorf("page %d: body at %d is not after title at %d", page.Number, bodyAt, titleAt)
		}
	}
}

func TestCompose_ImageOutcomes(t *testing.T) {
	truncatedPNG := encodePNG(t, 40, 40)
	truncatedPNG = truncatedPNG[:len(truncatedPNG)/2]

	tests := []struct {
		name  string
		image []byte
		want  ImageOutcome
	}{
		{"absent", nil, ImageAbsent},
		{"empty", []byte{}, ImageDecodeFailed},
		{"png", encodePNG(t, 64, 32), ImageDrawn},
		{"jpeg", encodeJPEG(t, 48, 48), ImageDrawn},
		{"gif", encodeGIF(t, 20, 40), ImageDrawn},
		{"bmp", encodeBMP(t, 30, 30), ImageDrawn},
		{"garbage", []byte("this is not an image at all, just words"), ImageDecodeFailed},
		{"truncated png", truncatedPNG, ImageDecodeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenes := synthesized(t, 3)
			scenes[1].Image = tt.image

			doc, err := newComposer(t).Compose(scenes)
			if err != nil {
				t.Fatalf("Compose() error = %v; a bad image must not fail the document", err)
			}
			page := doc.Pages[1]
			if page.Image != tt.want {
				t.Fatalf("Image = %q, want %q (err %v)", page.Image, tt.want, page.DecodeErr)
			}

			switch tt.want {
			case ImageDrawn:
				if page.ImageBox.Empty() || page.DecodeErr != nil {
					t.Errorf("drawn page has box %+v err %v", page.ImageBox, page.DecodeErr)
				}
			case ImageDecodeFailed:
				if page.DecodeErr == nil {
					t.Error("DecodeErr is nil for a failed decode")
				}
				fallthrough
			default:
				if !page.ImageBox.Empty() {
					t.Errorf("undrawn page has box %+v", page.ImageBox)
				}
			}
			for _, other := range []PageResult{doc.Pages[0], doc.Pages[2]} {
				if other.Image != ImageAbsent {
					t.Errorf("page %d Image = %q, want absent", other.Index, other.Image)
				}
			}
		})
	}
}

func TestCompose_ImageBoxGeometry(t *testing.T) {
	c := newComposer(t)
	l := c.Layout()
	region := l.ImageRegion()

	scenes := synthesized(t, 3)
	scenes[0].Image = encodePNG(t, 256, 256)
	scenes[1].Image = encodePNG(t, 600, 100)

	doc, err := c.Compose(scenes)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	square := doc.Pages[0].ImageBox
	if math.Abs(square.H-region.H) > eps || math.Abs(square.W-region.H) > eps {
		t.Errorf("square box = %+v, want %vx%v", square, region.H, region.H)
	}
	if math.Abs(square.X-l.Margin) > eps || math.Abs(square.Y+square.H-(l.PageHeight-l.Margin)) > eps {
		t.Errorf("square box %+v is not anchored at the bottom-left margin", square)
	}

	wide := doc.Pages[1].ImageBox
	if math.Abs(wide.W-region.W) > eps || math.Abs(wide.W/wide.H-6) > 1e-9 {
		t.Errorf("wide box = %+v, want width-bound with aspect 6", wide)
	}
}

func TestCompose_DownsamplesLargeImages(t *testing.T) {
	scenes := synthesized(t, 3)
	scenes[2].Image = encodePNG(t, 300, 150)

	small, err := newComposer(t, WithMaxImagePixels(50)).Compose(scenes)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	full, err := newComposer(t, WithMaxImagePixels(0)).Compose(scenes)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if small.Pages[2].Image != ImageDrawn {
		t.Fatalf("Image = %q", small.Pages[2].Image)
	}
	if small.Pages[2].ImageBox != full.Pages[2].ImageBox {
		t.Errorf("down-sampling changed the box: %+v vs %+v", small.Pages[2].ImageBox, full.Pages[2].ImageBox)
	}
	if len(small.Bytes) >= len(full.Bytes) {
		t.Errorf("down-sampled document (%d bytes) is not smaller than full (%d bytes)", len(small.Bytes), len(full.Bytes))
	}
}

func TestCompose_TruncatesLongText(t *testing.T) {
	scenes := synthesized(t, 3)
	scenes[0].Text = longWords(45)

	doc, err := newComposer(t).Compose(scenes)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if doc.Pages[0].LinesDrawn != 30 || doc.Pages[0].LinesTruncated != 15 {
		t.Errorf("lines drawn/truncated = %d/%d, want 30/15", doc.Pages[0].LinesDrawn, doc.Pages[0].LinesTruncated)
	}
	if doc.Pages[1].LinesTruncated != 0 {
		t.Errorf("short page truncated %d lines", doc.Pages[1].LinesTruncated)
	}

	in, err := Inspect(doc.Bytes)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if in.PageCount() != 3 {
		t.Errorf("overflowing text changed the page count to %d", in.PageCount())
	}
}

func TestCompose_DoesNotMutateInput(t *testing.T) {
	scenes := synthesized(t, 3)
	img := encodePNG(t, 32, 32)
	scenes[0].Image = img
	before := story.CloneScenes(scenes)

	if _, err := newComposer(t).Compose(scenes); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	for i := range scenes {
		if scenes[i].Text != before[i].Text || !bytes.Equal(scenes[i].Image, before[i].Image) {
			t.Errorf("scene %d changed during composition", i+1)
		}
	}
}

func TestCompose_RecordsMetrics(t *testing.T) {
	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
	c := newComposer(t, WithRecorder(store))

	if _, err := c.Compose(synthesized(t, 3)); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	tasks := store.GetRecentTasks(1)
	if len(tasks) != 1 || tasks[0].Type != metrics.TaskTypeCompose || tasks[0].Status != metrics.TaskStatusSuccess {
		t.Errorf("recorded tasks = %+v", tasks)
	}
}

func TestNew_RejectsInvalidLayout(t *testing.T) {
	l := DefaultLayout()
	l.LineStep = 0
	if _, err := New(WithLayout(l)); err == nil {
		t.Error("New() with invalid layout expected error")
	}
}

func TestCompositionError(t *testing.T) {
	cause := errors.New("font not found")
	err := error(&CompositionError{Page: 2, Err: cause})

	if !errors.Is(err, ErrRenderFailed) || !errors.Is(err, cause) {
		t.Errorf("CompositionError does not unwrap to both sentinel and cause")
	}
	if !strings.Contains(err.Error(), "page 2") {
		t.Errorf("Error() = %q", err.Error())
	}
	var ce *CompositionError
	if !errors.As(err, &ce) || ce.Page != 2 {
		t.Error("errors.As failed")
	}
}

func TestCompose_DuplicateIndicesKeepTheirOwnImages(t *testing.T) {
	c := newComposer(t)
	region := c.Layout().ImageRegion()

	scenes := synthesized(t, 3)[:2]
	scenes[1].Index = 1
	scenes[0].Image = encodePNG(t, 400, 100)
	scenes[1].Image = encodePNG(t, 100, 400)

	doc, err := c.Compose(scenes)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(doc.Pages))
	}

	wide, tall := doc.Pages[0].ImageBox, doc.Pages[1].ImageBox
	if math.Abs(wide.W/wide.H-4) > 1e-9 || math.Abs(wide.W-region.W) > eps {
		t.Errorf("first box = %+v, want width-bound with aspect 4", wide)
	}
	if math.Abs(tall.H/tall.W-4) > 1e-9 || math.Abs(tall.H-region.H) > eps {
		t.Errorf("second box = %+v, want height-bound with aspect 1/4", tall)
	}
	if got := bytes.Count(doc.Bytes, []byte("/Subtype /Image")); got != 2 {
		t.Errorf("image objects = %d, want 2 (one per page)", got)
	}
}

func TestCompose_CountsMissingGlyphs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"latin", "Café naïve façade, déjà vu.", false},
		{"cyrillic", "Жила-была лиса в тёмном лесу.", false},
		{"punctuation", "A door — then “another” one…", false},
		{"cjk", "小狐狸找到了一扇门", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenes := synthesized(t, 3)
			scenes[0].Text = tt.text

			doc, err := newComposer(t).Compose(scenes)
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			got := doc.Pages[0].MissingGlyphs
			if (got > 0) != tt.want {
				t.Errorf("MissingGlyphs = %d, want missing = %v", got, tt.want)
			}
			if doc.Pages[0].LinesDrawn != 1 {
				t.Errorf("LinesDrawn = %d, want 1", doc.Pages[0].LinesDrawn)
			}
		})
	}
}

func TestCompose_DrawsTextOutsideWinAnsi(t *testing.T) {
	scenes := synthesized(t, 3)
	scenes[0].Title = "Лиса"

	doc, err := newComposer(t).Compose(scenes)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if doc.Pages[0].MissingGlyphs != 0 {
		t.Errorf("MissingGlyphs = %d, want 0", doc.Pages[0].MissingGlyphs)
	}
	if !bytes.Contains(doc.Bytes, []byte("/Encoding /Identity-H")) {
		t.Error("document does not embed a UTF-8 font")
	}
}
