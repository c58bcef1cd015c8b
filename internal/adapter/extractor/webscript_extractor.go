package extractor

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"codectx/internal/domain"
)

// WebScriptExtractor extracts functions, classes, interfaces and arrow
// functions from TypeScript and JavaScript files with a regex scanner over
// balanced braces. Not a full parser; definition-level granularity is
// enough for retrieval.
type WebScriptExtractor struct{}

func NewWebScriptExtractor() *WebScriptExtractor {
	return &WebScriptExtractor{}
}

func (e *WebScriptExtractor) Extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx"}
}

var (
	reWebFunction  = regexp.MustCompile(`(?m)(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\([^)]*\)\s*(?::\s*[^{]+)?\{`)
	reWebClass     = regexp.MustCompile(`(?m)(?:export\s+)?class\s+(\w+)(?:\s+extends\s+\w+)?(?:\s+implements\s+[^{]+)?\s*\{`)
	reWebInterface = regexp.MustCompile(`(?m)(?:export\s+)?interface\s+(\w+)(?:\s+extends\s+[^{]+)?\s*\{`)
	reWebArrow     = regexp.MustCompile(`(?m)(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*(?::\s*[^={]+)?=>\s*\{`)
)

func (e *WebScriptExtractor) Extract(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	lines := strings.Split(content, "\n")

	var chunks []domain.Chunk
	for _, def := range []struct {
		re   *regexp.Regexp
		kind domain.ChunkType
	}{
		{reWebFunction, domain.ChunkFunction},
		{reWebClass, domain.ChunkClass},
		{reWebInterface, domain.ChunkInterface},
		{reWebArrow, domain.ChunkFunction},
	} {
		for _, m := range def.re.FindAllStringSubmatchIndex(content, -1) {
			name := content[m[2]:m[3]]

			end, ok := braceBlockEnd(content, m[0])
			if !ok {
				continue // unbalanced braces; the fallback covers the file
			}

			startLine := 1 + strings.Count(content[:m[0]], "\n")
			endLine := 1 + strings.Count(content[:end], "\n")
			startLine = extendToJSDoc(lines, startLine)

			chunks = append(chunks, domain.Chunk{
				Type:      def.kind,
				Name:      name,
				Text:      extractLines(lines, startLine, endLine),
				StartLine: startLine,
				EndLine:   endLine,
			})
		}
	}

	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].StartLine != chunks[j].StartLine {
			return chunks[i].StartLine < chunks[j].StartLine
		}
		return chunks[i].Name < chunks[j].Name
	})
	return chunks, nil
}

// braceBlockEnd returns the exclusive end offset of the brace block whose
// opening brace is the first "{" at or after start.
func braceBlockEnd(content string, start int) (int, bool) {
	open := strings.IndexByte(content[start:], '{')
	if open < 0 {
		return 0, false
	}

	depth := 1
	for pos := start + open + 1; pos < len(content); pos++ {
		switch content[pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return pos + 1, true
			}
		}
	}
	return 0, false
}

// extendToJSDoc pulls a JSDoc comment immediately above the definition
// into the chunk, the same treatment Go doc comments get.
func extendToJSDoc(lines []string, startLine int) int {
	j := startLine - 2 // line above the definition, 0-based
	if j < 0 || !strings.HasSuffix(strings.TrimSpace(lines[j]), "*/") {
		return startLine
	}
	for ; j >= 0; j-- {
		if strings.HasPrefix(strings.TrimSpace(lines[j]), "/*") {
			return j + 1
		}
	}
	return startLine
}
