package extractor

import (
	"os"
	"path/filepath"
	"strings"

	"codectx/internal/domain"
)

// MarkdownExtractor splits Markdown files into heading sections for more
// granular retrieval. The whole document is emitted as one chunk as well,
// so broad queries can still match the full file.
type MarkdownExtractor struct{}

func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{}
}

func (e *MarkdownExtractor) Extensions() []string {
	return []string{".md", ".markdown"}
}

func (e *MarkdownExtractor) Extract(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	lines := strings.Split(content, "\n")

	chunks := []domain.Chunk{{
		Type:      domain.ChunkDocument,
		Name:      filepath.Base(path),
		Text:      content,
		StartLine: 1,
		EndLine:   countLines(content),
	}}

	// One chunk per ATX heading section: heading line through the line
	// before the next heading of any level.
	sectionStart := -1
	sectionName := ""
	flush := func(endExclusive int) {
		if sectionStart < 0 {
			return
		}
		text := strings.TrimRight(strings.Join(lines[sectionStart:endExclusive], "\n"), "\n")
		if strings.TrimSpace(text) == "" {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Type:      domain.ChunkHeadingSection,
			Name:      sectionName,
			Text:      text,
			StartLine: sectionStart + 1,
			EndLine:   endExclusive,
		})
	}

	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if name, ok := headingName(line); ok {
			flush(i)
			sectionStart = i
			sectionName = name
		}
	}
	flush(len(lines))

	return chunks, nil
}

// headingName parses an ATX heading line ("# Title" .. "###### Title").
func headingName(line string) (string, bool) {
	s := line
	level := 0
	for len(s) > 0 && s[0] == '#' {
		level++
		s = s[1:]
	}
	if level == 0 || level > 6 {
		return "", false
	}
	if len(s) == 0 || (s[0] != ' ' && s[0] != '\t') {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimRight(s, "#"))
	if name == "" {
		return "", false
	}
	return name, true
}
