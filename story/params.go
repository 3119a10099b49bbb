package story

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Genre is the story genre offered to the user.
type Genre string

const (
	GenreFantasy   Genre = "fantasy"
	GenreSciFi     Genre = "sci-fi"
	GenreMystery   Genre = "mystery"
	GenreAdventure Genre = "adventure"
	GenreComedy    Genre = "comedy"
	GenreDrama     Genre = "drama"
)

// Tone is the emotional register of the story.
type Tone string

const (
	ToneLighthearted Tone = "lighthearted"
	ToneWhimsical    Tone = "whimsical"
	ToneEpic         Tone = "epic"
	ToneDark         Tone = "dark"
	ToneHopeful      Tone = "hopeful"
	TonePoignant     Tone = "poignant"
)

// Audience is the intended reader group.
type Audience string

const (
	AudienceKids   Audience = "kids"
	AudienceTeens  Audience = "teens"
	AudienceAdults Audience = "adults"
)

// ArtStyle is appended to every default image prompt.
type ArtStyle string

const (
	ArtStyleCartoon   ArtStyle = "cartoon"
	ArtStyleAnime     ArtStyle = "anime"
	ArtStyleRealistic ArtStyle = "realistic"
	ArtStyle3DRender  ArtStyle = "3D render"
)

var (
	genres    = []Genre{GenreFantasy, GenreSciFi, GenreMystery, GenreAdventure, GenreComedy, GenreDrama}
	tones     = []Tone{ToneLighthearted, ToneWhimsical, ToneEpic, ToneDark, ToneHopeful, TonePoignant}
	audiences = []Audience{AudienceKids, AudienceTeens, AudienceAdults}
	artStyles = []ArtStyle{ArtStyleCartoon, ArtStyleAnime, ArtStyleRealistic, ArtStyle3DRender}
)

// Genres returns the accepted genres in presentation order.
func Genres() []Genre { return append([]Genre(nil), genres...) }

// Tones returns the accepted tones in presentation order.
func Tones() []Tone { return append([]Tone(nil), tones...) }

// Audiences returns the accepted audiences in presentation order.
func Audiences() []Audience { return append([]Audience(nil), audiences...) }

// ArtStyles returns the accepted art styles in presentation order.
func ArtStyles() []ArtStyle { return append([]ArtStyle(nil), artStyles...) }

// ParseGenre matches s case-insensitively. Empty input yields the default.
func ParseGenre(s string) (Genre, error) {
	return parseEnum("genre", s, genres, DefaultGenre)
}

// ParseTone matches s case-insensitively. Empty input yields the default.
func ParseTone(s string) (Tone, error) {
	return parseEnum("tone", s, tones, DefaultTone)
}

// ParseAudience matches s case-insensitively. Empty input yields the default.
func ParseAudience(s string) (Audience, error) {
	return parseEnum("audience", s, audiences, DefaultAudience)
}

// ParseArtStyle matches s case-insensitively. Empty input yields the default.
func ParseArtStyle(s string) (ArtStyle, error) {
	return parseEnum("art_style", s, artStyles, DefaultArtStyle)
}

func parseEnum[T ~string](field, s string, allowed []T, def T) (T, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	for _, v := range allowed {
		if strings.EqualFold(string(v), s) {
			return v, nil
		}
	}
	names := make([]string, len(allowed))
	for i, v := range allowed {
		names[i] = string(v)
	}
	return def, &SynthesisError{
		Field:  field,
		Reason: fmt.Sprintf("unknown value %q (want one of %s)", s, strings.Join(names, ", ")),
	}
}

// Defaults used when a parameter is left empty.
const (
	DefaultGenre      = GenreFantasy
	DefaultTone       = ToneLighthearted
	DefaultAudience   = AudienceKids
	DefaultArtStyle   = ArtStyleCartoon
	DefaultSceneCount = 3

	MinSceneCount = 3
	MaxSceneCount = 5
)

// Params are the user-facing story settings. The yaml and json tags are the
// wire names used by the CLI params file and the HTTP API.
type Params struct {
	Idea       string   `json:"idea" yaml:"idea" validate:"required"`
	Genre      Genre    `json:"genre" yaml:"genre"`
	Tone       Tone     `json:"tone" yaml:"tone"`
	Audience   Audience `json:"audience" yaml:"audience"`
	SceneCount int      `json:"scene_count" yaml:"scene_count" validate:"gt=0"`
	ArtStyle   ArtStyle `json:"art_style" yaml:"art_style"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims the idea, resolves enum spellings and defaults, and
// validates the result. The returned Params are ready for synthesis;
// SceneCount is not clamped here.
func (p Params) Normalize() (Params, error) {
	out := p
	out.Idea = strings.TrimSpace(p.Idea)

	if err := validate.Struct(out); err != nil {
		return Params{}, fromValidationError(err)
	}

	var err error
	if out.Genre, err = ParseGenre(string(p.Genre)); err != nil {
		return Params{}, err
	}
	if out.Tone, err = ParseTone(string(p.Tone)); err != nil {
		return Params{}, err
	}
	if out.Audience, err = ParseAudience(string(p.Audience)); err != nil {
		return Params{}, err
	}
	if out.ArtStyle, err = ParseArtStyle(string(p.ArtStyle)); err != nil {
		return Params{}, err
	}
	return out, nil
}

// EffectiveSceneCount is the number of scenes synthesis will produce.
func (p Params) EffectiveSceneCount() int {
	if p.SceneCount > MaxSceneCount {
		return MaxSceneCount
	}
	return p.SceneCount
}

// Clamped reports whether SceneCount exceeds the number of scene roles.
func (p Params) Clamped() bool {
	return p.SceneCount > MaxSceneCount
}

// DefaultParams returns the settings preselected by the interactive UI.
func DefaultParams(idea string) Params {
	return Params{
		Idea:       idea,
		Genre:      DefaultGenre,
		Tone:       DefaultTone,
		Audience:   DefaultAudience,
		SceneCount: DefaultSceneCount,
		ArtStyle:   DefaultArtStyle,
	}
}

func fromValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return &SynthesisError{Field: jsonName(fe.Field()), Reason: "must not be empty"}
		case "gt":
			return &SynthesisError{Field: jsonName(fe.Field()), Reason: fmt.Sprintf("must be positive, got %v", fe.Value())}
		default:
			return &SynthesisError{Field: jsonName(fe.Field()), Reason: fmt.Sprintf("failed %q rule", fe.Tag())}
		}
	}
	return &SynthesisError{Reason: err.Error()}
}

func jsonName(field string) string {
	switch field {
	case "Idea":
		return "idea"
	case "SceneCount":
		return "scene_count"
	default:
		return strings.ToLower(field)
	}
}
