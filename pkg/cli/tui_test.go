package cli

import (
	"strings"
	"testing"
)

func TestFrameRender(t *testing.T) {
	f := Frame{
		Styles: NewStyles(DefaultTheme),
		Title:  "voxpal chat",
		Status: "connected",
		Sections: []Section{
			{Label: " conversation ", Content: func() []string {
				return []string{"you: hi", "bot: hello there"}
			}},
			{Label: " log ", Content: func() []string { return nil }},
		},
		Help: "/quit to leave",
	}

	out := f.Render(60, 20)
	if !strings.Contains(out, "voxpal chat") {
		t.Error("rendered frame should contain the title")
	}
	if !strings.Contains(out, "bot: hello there") {
		t.Error("rendered frame should contain section content")
	}
	if !strings.Contains(out, "/quit to leave") {
		t.Error("rendered frame should contain the help line")
	}

	lines := strings.Split(out, "\n")
	if len(lines) < 10 {
		t.Errorf("frame height = %d lines, want at least 10", len(lines))
	}
}

func TestFrameRenderZeroSize(t *testing.T) {
	f := Frame{Styles: NewStyles(DefaultTheme)}
	if got := f.Render(0, 0); got != "Loading..." {
		t.Errorf("Render(0,0) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"你好世界", 4, "你好"}, // wide runes count double
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
