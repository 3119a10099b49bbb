package composer

import (
	"math"
	"math/rand"
	"strings"
	"testing"
)

const eps = 1e-6

func TestDefaultLayout_Geometry(t *testing.T) {
	l := DefaultLayout()
	if err := l.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	margin := 2 * 72.0 / 2.54
	if math.Abs(l.Margin-margin) > eps {
		t.Errorf("Margin = %v, want %v", l.Margin, margin)
	}

	region := l.ImageRegion()
	if math.Abs(region.W-(A4Width-2*margin)) > eps {
		t.Errorf("region W = %v", region.W)
	}
	if math.Abs(region.H-10*Cm) > eps {
		t.Errorf("region H = %v", region.H)
	}
	if math.Abs(region.X-margin) > eps {
		t.Errorf("region X = %v", region.X)
	}
	if math.Abs(region.Y+region.H-(A4Height-margin)) > eps {
		t.Errorf("region bottom = %v, want %v", region.Y+region.H, A4Height-margin)
	}
	if math.Abs(l.TextFloor()-region.Y) > eps {
		t.Errorf("TextFloor() = %v, want region top %v", l.TextFloor(), region.Y)
	}
}

func TestLayout_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Layout)
	}{
		{"zero page", func(l *Layout) { l.PageWidth = 0 }},
		{"margin too wide", func(l *Layout) { l.Margin = l.PageWidth / 2 }},
		{"zero line step", func(l *Layout) { l.LineStep = 0 }},
		{"zero columns", func(l *Layout) { l.WrapColumns = 0 }},
		{"no image band", func(l *Layout) { l.ImageHeight = 0 }},
		{"band swallows text", func(l *Layout) { l.ImageHeight = l.PageHeight }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := DefaultLayout()
			tt.mutate(&l)
			if err := l.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestFit(t *testing.T) {
	region := Box{X: 10, Y: 100, W: 400, H: 200}

	tests := []struct {
		name string
		w, h int
		want Box
	}{
		{"square is height bound", 256, 256, Box{X: 10, Y: 100, W: 200, H: 200}},
		{"same aspect fills region", 800, 400, Box{X: 10, Y: 100, W: 400, H: 200}},
		{"wide is width bound", 1000, 100, Box{X: 10, Y: 260, W: 400, H: 40}},
		{"tall is height bound", 100, 400, Box{X: 10, Y: 100, W: 50, H: 200}},
		{"tiny image is scaled up", 2, 1, Box{X: 10, Y: 100, W: 400, H: 200}},
		{"zero width", 0, 10, Box{}},
		{"zero height", 10, 0, Box{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(region, tt.w, tt.h)
			if math.Abs(got.X-tt.want.X) > eps || math.Abs(got.Y-tt.want.Y) > eps ||
				math.Abs(got.W-tt.want.W) > eps || math.Abs(got.H-tt.want.H) > eps {
				t.Errorf("Fit(%dx%d) = %+v, want %+v", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestFit_ContainsAndKeepsAspect(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	regions := []Box{
		DefaultLayout().ImageRegion(),
		{W: 100, H: 100},
		{W: 50, H: 300},
		{X: 3, Y: 7, W: 1000, H: 1},
	}

	for _, region := range regions {
		for i := 0; i < 500; i++ {
			w := 1 + rng.Intn(4096)
			h := 1 + rng.Intn(4096)
			got := Fit(region, w, h)

			if got.W > region.W+eps || got.H > region.H+eps {
				t.Fatalf("Fit(%+v, %dx%d) = %+v exceeds region", region, w, h, got)
			}
			want := float64(w) / float64(h)
			if math.Abs(got.W/got.H-want) > want*1e-9 {
				t.Fatalf("Fit(%+v, %dx%d) aspect = %v, want %v", region, w, h, got.W/got.H, want)
			}
			if math.Abs(got.W-region.W) > eps && math.Abs(got.H-region.H) > eps {
				t.Fatalf("Fit(%+v, %dx%d) = %+v touches neither side", region, w, h, got)
			}
			if math.Abs(got.X-region.X) > eps || math.Abs(got.Y+got.H-(region.Y+region.H)) > eps {
				t.Fatalf("Fit(%+v, %dx%d) = %+v is not anchored bottom-left", region, w, h, got)
			}
		}
	}
}

// longWords returns n words that each need a line of their own at 95
// columns.
func longWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = strings.Repeat(string(rune('a'+i%26)), 94)
	}
	return strings.Join(words, " ")
}

func TestLayout_FlowText(t *testing.T) {
	l := DefaultLayout()

	tests := []struct {
		name          string
		text          string
		wantDrawn     int
		wantTruncated int
	}{
		{"empty", "", 0, 0},
		{"one line", "A girl finds a door.", 1, 0},
		{"exactly fits", longWords(30), 30, 0},
		{"overflows", longWords(40), 30, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, baselines, truncated := l.FlowText(tt.text)
			if len(lines) != tt.wantDrawn || len(baselines) != tt.wantDrawn {
				t.Fatalf("drew %d lines (%d baselines), want %d", len(lines), len(baselines), tt.wantDrawn)
			}
			if truncated != tt.wantTruncated {
				t.Errorf("truncated = %d, want %d", truncated, tt.wantTruncated)
			}
			for i, y := range baselines {
				want := l.Margin + l.BodyOffset + float64(i)*l.LineStep
				if math.Abs(y-want) > eps {
					t.Errorf("baseline[%d] = %v, want %v", i, y, want)
				}
				if i > 0 && y > l.TextFloor() {
					t.Errorf("baseline[%d] = %v is inside the image band", i, y)
				}
			}
		})
	}
}

func TestLayout_FlowTextAlwaysDrawsFirstLine(t *testing.T) {
	l := DefaultLayout()
	l.ImageHeight = l.PageHeight - l.Margin - l.TitleBaseline() - 1

	lines, _, truncated := l.FlowText("first line words " + longWords(3))
	if len(lines) != 1 {
		t.Fatalf("drew %d lines, want only the first", len(lines))
	}
	if truncated != 3 {
		t.Errorf("truncated = %d, want 3", truncated)
	}
}

func TestLayout_FlowTextRewrapsAt95Columns(t *testing.T) {
	text := strings.Repeat("lantern ", 60)
	lines, _, _ := DefaultLayout().FlowText(text)
	for i, line := range lines {
		if len(line) > 95 {
			t.Errorf("line %d has %d columns", i, len(line))
		}
	}
	if len(lines) < 5 {
		t.Errorf("expected text to wrap, got %d lines", len(lines))
	}
}
