package llm

import (
	"strings"
	"testing"
)

func TestNormalizeStyle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"俳句", "haiku", "haiku"},
		{"大小写", "Sonnet", "sonnet"},
		{"空格转下划线", "free verse", "free_verse"},
		{"连字符转下划线", "free-verse", "free_verse"},
		{"未知风格回退", "villanelle", "free_verse"},
		{"空串回退", "", "free_verse"},
		{"前后空白", "  limerick  ", "limerick"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeStyle(tt.input); got != tt.want {
				t.Errorf("NormalizeStyle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildPoemPrompt(t *testing.T) {
	prompt := BuildPoemPrompt(PoemRequest{
		Code:     "func main() {}",
		Language: "Go",
		Style:    "haiku",
	})

	if !strings.Contains(prompt, "haiku") {
		t.Errorf("prompt should mention the style, got: %s", prompt)
	}
	if !strings.Contains(prompt, "```go\nfunc main() {}\n```") {
		t.Errorf("prompt should embed the code in a fenced block, got: %s", prompt)
	}
	if !strings.Contains(prompt, "written in go") {
		t.Errorf("prompt should mention the language, got: %s", prompt)
	}
}

func TestBuildPoemPromptNoLanguage(t *testing.T) {
	prompt := BuildPoemPrompt(PoemRequest{Code: "x = 1\n", Style: "limerick"})

	if strings.Contains(prompt, "written in") {
		t.Errorf("prompt must not mention language when none is given, got: %s", prompt)
	}
	if !strings.Contains(prompt, "```\nx = 1\n```") {
		t.Errorf("fenced block should have no language tag, got: %s", prompt)
	}
}
