package webui

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/h2non/filetype"

	"storybook/imagegen"
	"storybook/pipeline"
	"storybook/story"
)

// ErrBadImageEncoding is returned for an image field that is not base64.
var ErrBadImageEncoding = errors.New("webui: image is not valid base64")

// SceneJSON is the wire form of a scene. Image distinguishes a missing
// key or null (no image) from "" (a present, empty image).
type SceneJSON struct {
	Index       int     `json:"index"`
	Title       string  `json:"title"`
	Text        string  `json:"text"`
	ImagePrompt string  `json:"image_prompt,omitempty"`
	HasImage    bool    `json:"has_image"`
	Image       *string `json:"image,omitempty"`
}

// EncodeScene converts a scene for a response. The image is only
// included when withImage is set.
func EncodeScene(sc story.Scene, withImage bool) SceneJSON {
	out := SceneJSON{
		Index:       sc.Index,
		Title:       sc.Title,
		Text:        sc.Text,
		ImagePrompt: sc.ImagePrompt,
		HasImage:    sc.HasImage(),
	}
	if withImage && sc.HasImage() {
		s := dataURL(sc.Image)
		out.Image = &s
	}
	return out
}

// EncodeScenes converts scenes in order.
func EncodeScenes(scenes []story.Scene, withImages bool) []SceneJSON {
	out := make([]SceneJSON, len(scenes))
	for i, sc := range scenes {
		out[i] = EncodeScene(sc, withImages)
	}
	return out
}

// Decode converts the wire form back to a scene.
func (s SceneJSON) Decode() (story.Scene, error) {
	img, err := DecodeImage(s.Image)
	if err != nil {
		return story.Scene{}, fmt.Errorf("scene %d: %w", s.Index, err)
	}
	return story.Scene{
		Index:       s.Index,
		Title:       s.Title,
		Text:        s.Text,
		ImagePrompt: s.ImagePrompt,
		Image:       img,
	}, nil
}

// DecodeImage accepts nil, a data URL or bare base64. nil stays nil; any
// present value, including "", decodes to a non-nil slice.
func DecodeImage(field *string) ([]byte, error) {
	if field == nil {
		return nil, nil
	}
	payload := *field
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: data URL must be base64 encoded", ErrBadImageEncoding)
		}
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImageEncoding, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func dataURL(img []byte) string {
	mime := "application/octet-stream"
	if kind, err := filetype.Match(img); err == nil && kind != filetype.Unknown {
		mime = kind.MIME.Value
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)
}

// OutcomeJSON is the wire form of one acquisition outcome.
type OutcomeJSON struct {
	Index      int    `json:"index,omitempty"`
	OK         bool   `json:"ok"`
	Skipped    bool   `json:"skipped,omitempty"`
	Code       string `json:"code,omitempty"`
	Cause      string `json:"cause,omitempty"`
	ImageBytes int    `json:"image_bytes,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// EncodeOutcome converts a pipeline outcome.
func EncodeOutcome(o pipeline.Outcome) OutcomeJSON {
	out := OutcomeJSON{
		Index:      o.Index,
		OK:         o.OK(),
		Skipped:    o.Skipped,
		ImageBytes: o.ImageBytes,
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.Failure != nil {
		out.Code = string(o.Failure.Code)
		out.Cause = o.Failure.Cause
	}
	return out
}

// EncodeResult converts a stateless acquisition result.
func EncodeResult(r imagegen.Result) OutcomeJSON {
	out := OutcomeJSON{
		OK:         r.OK(),
		ImageBytes: len(r.Image),
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Failure != nil {
		out.Code = string(r.Failure.Code)
		out.Cause = r.Failure.Cause
	}
	return out
}
