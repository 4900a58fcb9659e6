package llm

import (
	"fmt"
	"strings"
)

// 各诗体的写作指引，提示词用英文以兼容所有服务商
var styleInstructions = map[string]string{
	"haiku":      "Write a haiku (three lines, 5-7-5 syllables) capturing the essence of this code.",
	"sonnet":     "Write a Shakespearean sonnet (14 lines, iambic pentameter, ABAB CDCD EFEF GG) about this code.",
	"limerick":   "Write a limerick (five lines, AABBA rhyme scheme, humorous tone) about this code.",
	"free_verse": "Write a free verse poem about this code. No fixed meter or rhyme, but vivid imagery.",
	"epic":       "Write a short epic poem in a grand heroic register, narrating this code as a hero's journey.",
}

const defaultStyle = "free_verse"

// NormalizeStyle maps user input onto a known style, defaulting to free verse.
func NormalizeStyle(style string) string {
	s := strings.ToLower(strings.TrimSpace(style))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	if _, ok := styleInstructions[s]; ok {
		return s
	}
	return defaultStyle
}

// KnownStyles returns the supported style identifiers.
func KnownStyles() []string {
	styles := make([]string, 0, len(styleInstructions))
	for s := range styleInstructions {
		styles = append(styles, s)
	}
	return styles
}

// BuildPoemPrompt 将代码片段组装成发给模型的提示词。
// 语言标签只影响代码块标注，不认识的语言原样透传。
func BuildPoemPrompt(request PoemRequest) string {
	style := NormalizeStyle(request.Style)
	lang := strings.ToLower(strings.TrimSpace(request.Language))

	var sb strings.Builder
	sb.WriteString("You are a poet who finds beauty in source code.\n")
	sb.WriteString(styleInstructions[style])
	sb.WriteString("\nRespond with the poem only, no preamble, no explanation, no code fences.\n\n")
	if lang != "" {
		sb.WriteString(fmt.Sprintf("The code is written in %s.\n", lang))
	}
	sb.WriteString("```")
	sb.WriteString(lang)
	sb.WriteString("\n")
	sb.WriteString(request.Code)
	if !strings.HasSuffix(request.Code, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```")
	return sb.String()
}
