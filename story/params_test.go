package story

import (
	"testing"
)

func TestParseEnums(t *testing.T) {
	if g, err := ParseGenre("SCI-FI"); err != nil || g != GenreSciFi {
		t.Errorf("ParseGenre(SCI-FI) = %q, %v", g, err)
	}
	if g, err := ParseGenre(""); err != nil || g != DefaultGenre {
		t.Errorf("ParseGenre(\"\") = %q, %v; want default", g, err)
	}
	if tone, err := ParseTone(" poignant "); err != nil || tone != TonePoignant {
		t.Errorf("ParseTone() = %q, %v", tone, err)
	}
	if a, err := ParseAudience("Adults"); err != nil || a != AudienceAdults {
		t.Errorf("ParseAudience() = %q, %v", a, err)
	}
	if s, err := ParseArtStyle("3d RENDER"); err != nil || s != ArtStyle3DRender {
		t.Errorf("ParseArtStyle() = %q, %v", s, err)
	}
	if _, err := ParseArtStyle("watercolour"); err == nil {
		t.Error("ParseArtStyle(watercolour) expected error")
	}
}

func TestEnumListsAreCopies(t *testing.T) {
	g := Genres()
	g[0] = "noir"
	if Genres()[0] != GenreFantasy {
		t.Error("Genres() exposes the internal slice")
	}
	if len(Tones()) != 6 || len(Audiences()) != 3 || len(ArtStyles()) != 4 {
		t.Error("unexpected enum sizes")
	}
}

func TestParams_Normalize(t *testing.T) {
	p := Params{Idea: "  A robot learns to paint  ", SceneCount: 9}

	norm, err := p.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if norm.Idea != "A robot learns to paint" {
		t.Errorf("Idea = %q, want trimmed", norm.Idea)
	}
	if norm.Genre != DefaultGenre || norm.Tone != DefaultTone || norm.Audience != DefaultAudience || norm.ArtStyle != DefaultArtStyle {
		t.Errorf("defaults not applied: %+v", norm)
	}
	if norm.SceneCount != 9 {
		t.Errorf("SceneCount = %d, Normalize must not clamp", norm.SceneCount)
	}
	if !norm.Clamped() || norm.EffectiveSceneCount() != MaxSceneCount {
		t.Errorf("Clamped() = %v, EffectiveSceneCount() = %d", norm.Clamped(), norm.EffectiveSceneCount())
	}
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams("idea")
	if p.SceneCount != DefaultSceneCount || p.Clamped() {
		t.Errorf("DefaultParams() = %+v", p)
	}
	if _, err := p.Normalize(); err != nil {
		t.Errorf("DefaultParams() do not validate: %v", err)
	}
}

func TestScene_Clone(t *testing.T) {
	orig := Scene{Index: 1, Title: "Opening", Image: []byte{1, 2, 3}}
	cp := orig.Clone()
	cp.Image[0] = 9
	if orig.Image[0] != 1 {
		t.Error("Clone() shares the image buffer")
	}

	empty := Scene{Image: []byte{}}
	if !empty.Clone().HasImage() {
		t.Error("Clone() turned an empty image into an absent one")
	}
	if (Scene{}).Clone().HasImage() {
		t.Error("Clone() turned an absent image into a present one")
	}
}
