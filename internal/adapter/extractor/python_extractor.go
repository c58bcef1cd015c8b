package extractor

import (
	"os"
	"strings"

	"codectx/internal/domain"
)

// PythonExtractor extracts def and class blocks from Python files using an
// indentation scanner. It covers nested definitions: a block ends at the
// first non-blank line indented at or below the definition's level.
type PythonExtractor struct{}

func NewPythonExtractor() *PythonExtractor {
	return &PythonExtractor{}
}

func (e *PythonExtractor) Extensions() []string {
	return []string{".py", ".pyi"}
}

func (e *PythonExtractor) Extract(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")

	var chunks []domain.Chunk

	if doc, endLine := moduleDocstring(lines); doc != "" {
		chunks = append(chunks, domain.Chunk{
			Type:      domain.ChunkModuleDoc,
			Name:      "module",
			Text:      doc,
			StartLine: 1,
			EndLine:   endLine,
		})
	}

	for i := 0; i < len(lines); i++ {
		name, kind, ok := parseDefinition(lines[i])
		if !ok {
			continue
		}

		indent := indentOf(lines[i])
		start := i

		// Pull leading decorators into the chunk.
		for start > 0 {
			prev := strings.TrimSpace(lines[start-1])
			if strings.HasPrefix(prev, "@") && indentOf(lines[start-1]) == indent {
				start--
				continue
			}
			break
		}

		end := blockEnd(lines, i, indent)

		chunks = append(chunks, domain.Chunk{
			Type:      kind,
			Name:      name,
			Text:      strings.Join(lines[start:end], "\n"),
			StartLine: start + 1,
			EndLine:   end,
		})
	}

	return chunks, nil
}

// parseDefinition recognizes "def name(" / "async def name(" / "class name"
// statements, at any indentation.
func parseDefinition(line string) (name string, kind domain.ChunkType, ok bool) {
	s := strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(s, "def "):
		s = s[len("def "):]
		kind = domain.ChunkFunction
	case strings.HasPrefix(s, "async def "):
		s = s[len("async def "):]
		kind = domain.ChunkFunction
	case strings.HasPrefix(s, "class "):
		s = s[len("class "):]
		kind = domain.ChunkClass
	default:
		return "", "", false
	}

	for i, r := range s {
		if r == '(' || r == ':' || r == ' ' {
			s = s[:i]
			break
		}
	}
	if s == "" {
		return "", "", false
	}
	return s, kind, true
}

// blockEnd returns the exclusive end line index of the block starting at
// defLine with the given indentation.
func blockEnd(lines []string, defLine, indent int) int {
	end := defLine + 1
	for j := defLine + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "" {
			continue
		}
		if indentOf(lines[j]) <= indent {
			break
		}
		end = j + 1
	}
	return end
}

// indentOf counts leading spaces, with tabs as four spaces.
func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

// moduleDocstring returns the module-level docstring, when the file starts
// with one, and the line it ends on.
func moduleDocstring(lines []string) (string, int) {
	i := 0
	for i < len(lines) {
		s := strings.TrimSpace(lines[i])
		if s == "" || strings.HasPrefix(s, "#") {
			i++
			continue
		}
		break
	}
	if i >= len(lines) {
		return "", 0
	}

	s := strings.TrimSpace(lines[i])
	var quote string
	switch {
	case strings.HasPrefix(s, `"""`):
		quote = `"""`
	case strings.HasPrefix(s, "'''"):
		quote = "'''"
	default:
		return "", 0
	}

	// Single-line docstring.
	if rest := s[len(quote):]; strings.Contains(rest, quote) {
		return strings.TrimSuffix(rest, quote), i + 1
	}

	var body []string
	body = append(body, strings.TrimPrefix(s, quote))
	for j := i + 1; j < len(lines); j++ {
		if idx := strings.Index(lines[j], quote); idx >= 0 {
			body = append(body, lines[j][:idx])
			return strings.TrimSpace(strings.Join(body, "\n")), j + 1
		}
		body = append(body, lines[j])
	}
	return "", 0 // unterminated; let the fallback deal with it
}
