package story

import (
	"bytes"
	"fmt"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
)

// Column widths used when wrapping scene text.
const (
	TextWrapWidth = 100
)

const (
	bodyTemplate   = `[{{ .Genre }}/{{ .Tone }}/{{ .Audience }}] {{ .Role }}: Based on the idea — {{ .Idea }} — story continues here.`
	promptTemplate = `{{ .Genre }} {{ .Tone }} illustration of {{ .Idea | lower }} — scene '{{ .Role }}', style: {{ .ArtStyle }}. Wide shot, cinematic lighting`
)

var (
	bodyTmpl   = template.Must(template.New("body").Funcs(sprig.FuncMap()).Parse(bodyTemplate))
	promptTmpl = template.Must(template.New("prompt").Funcs(sprig.FuncMap()).Parse(promptTemplate))
)

type templateValues struct {
	Params
	Role string
}

// Writer produces the body text and default image prompt for one scene
// role. Implementations must be deterministic for a given input.
type Writer interface {
	Text(p Params, role string) (string, error)
	Prompt(p Params, role string) (string, error)
}

// TemplateWriter fills fixed templates; it never calls out to a model.
type TemplateWriter struct{}

// Text renders the body paragraph for role and wraps it to TextWrapWidth.
func (TemplateWriter) Text(p Params, role string) (string, error) {
	raw, err := execute(bodyTmpl, p, role)
	if err != nil {
		return "", err
	}
	return Fill(raw, TextWrapWidth), nil
}

// Prompt renders the default image prompt for role.
func (TemplateWriter) Prompt(p Params, role string) (string, error) {
	return execute(promptTmpl, p, role)
}

func execute(tmpl *template.Template, p Params, role string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateValues{Params: p, Role: role}); err != nil {
		return "", fmt.Errorf("story: render %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// Synthesizer maps story parameters to an ordered scene sequence.
type Synthesizer struct {
	writer Writer
}

// NewSynthesizer returns a Synthesizer using w, or TemplateWriter when w is nil.
func NewSynthesizer(w Writer) *Synthesizer {
	if w == nil {
		w = TemplateWriter{}
	}
	return &Synthesizer{writer: w}
}

// Synthesize validates p and returns min(SceneCount, 5) scenes indexed from 1.
// It performs no I/O; identical inputs give byte-identical output.
func (s *Synthesizer) Synthesize(p Params) ([]Scene, error) {
	norm, err := p.Normalize()
	if err != nil {
		return nil, err
	}

	n := norm.EffectiveSceneCount()
	scenes := make([]Scene, 0, n)
	for i, role := range Roles[:n] {
		text, err := s.writer.Text(norm, role)
		if err != nil {
			return nil, err
		}
		prompt, err := s.writer.Prompt(norm, role)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, Scene{
			Index:       i + 1,
			Title:       role,
			Text:        text,
			ImagePrompt: prompt,
		})
	}
	return scenes, nil
}

var defaultSynthesizer = NewSynthesizer(nil)

// Synthesize runs the template synthesizer.
func Synthesize(p Params) ([]Scene, error) {
	return defaultSynthesizer.Synthesize(p)
}
