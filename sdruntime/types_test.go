package sdruntime

import (
	"errors"
	"strings"
	"testing"
	"time"

	"storybook/core"
)

func validParams() GenerateParams {
	return DefaultConfig().Params("a red door in a forest")
}

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GenerateParams)
		wantErr error
	}{
		{"defaults", func(*GenerateParams) {}, nil},
		{"empty prompt", func(p *GenerateParams) { p.Prompt = "   " }, ErrInvalidPrompt},
		{"nul in prompt", func(p *GenerateParams) { p.Prompt = "a\x00b" }, ErrInvalidPrompt},
		{"invalid utf8", func(p *GenerateParams) { p.Prompt = "a\xffb" }, ErrInvalidPrompt},
		{"long prompt", func(p *GenerateParams) { p.Prompt = strings.Repeat("x", MaxPromptLength+1) }, ErrInvalidPrompt},
		{"width too small", func(p *GenerateParams) { p.Width = 32 }, ErrInvalidParams},
		{"height too large", func(p *GenerateParams) { p.Height = 4096 }, ErrInvalidParams},
		{"width not multiple of 8", func(p *GenerateParams) { p.Width = 250 }, ErrInvalidParams},
		{"zero steps", func(p *GenerateParams) { p.Steps = 0 }, ErrInvalidParams},
		{"too many steps", func(p *GenerateParams) { p.Steps = 101 }, ErrInvalidParams},
		{"cfg below range", func(p *GenerateParams) { p.CFGScale = 0.5 }, ErrInvalidParams},
		{"cfg above range", func(p *GenerateParams) { p.CFGScale = 31 }, ErrInvalidParams},
		{"long negative prompt", func(p *GenerateParams) { p.NegativePrompt = strings.Repeat("n", MaxPromptLength+1) }, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := ValidateParams(p)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateParams() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateParams() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Params(t *testing.T) {
	p := DefaultConfig().Params("  a lighthouse  ")
	if p.Prompt != "a lighthouse" {
		t.Errorf("Prompt = %q, want trimmed", p.Prompt)
	}
	if p.Width != 256 || p.Height != 256 || p.Steps != 1 || p.CFGScale != 1.0 || p.Seed != -1 {
		t.Errorf("Params() = %+v, want sd-turbo profile", p)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(&core.Config{
		SDImageSize:      512,
		SDInferenceSteps: 4,
		SDGuidanceScale:  2.5,
		SDNegativePrompt: "blurry",
		SDTimeout:        30 * time.Second,
	})
	want := Config{ImageSize: 512, InferenceSteps: 4, GuidanceScale: 2.5, NegativePrompt: "blurry", Timeout: 30 * time.Second}
	if cfg != want {
		t.Errorf("ConfigFrom() = %+v, want %+v", cfg, want)
	}

	if ConfigFrom(nil) != DefaultConfig() {
		t.Error("ConfigFrom(nil) should return defaults")
	}
	if ConfigFrom(&core.Config{}) != DefaultConfig() {
		t.Error("ConfigFrom(zero) should return defaults")
	}
}

func TestRandomSeed(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		s := RandomSeed()
		if s < 0 || s > 1<<31-1 {
			t.Fatalf("RandomSeed() = %d, out of 32-bit range", s)
		}
		seen[s] = true
	}
	if len(seen) < 90 {
		t.Errorf("RandomSeed() produced only %d distinct values in 100 draws", len(seen))
	}
}
