package extractor

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strings"

	"codectx/internal/domain"
)

// GoExtractor parses Go source files into declaration-level chunks using
// the standard AST.
type GoExtractor struct{}

func NewGoExtractor() *GoExtractor {
	return &GoExtractor{}
}

func (e *GoExtractor) Extensions() []string {
	return []string{".go"}
}

// Extract returns one chunk per top-level declaration, each with its doc
// comment attached, plus a module_doc chunk for the package comment.
func (e *GoExtractor) Extract(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(content, "\n")
	var chunks []domain.Chunk

	if f.Doc != nil {
		start := fset.Position(f.Doc.Pos()).Line
		end := fset.Position(f.Doc.End()).Line
		chunks = append(chunks, domain.Chunk{
			Type:      domain.ChunkModuleDoc,
			Name:      f.Name.Name,
			Text:      f.Doc.Text(),
			StartLine: start,
			EndLine:   end,
		})
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			chunks = append(chunks, e.funcChunk(fset, d, lines))
		case *ast.GenDecl:
			chunks = append(chunks, e.genDeclChunks(fset, d, lines)...)
		}
	}

	return chunks, nil
}

// funcChunk extracts a function or method declaration.
func (e *GoExtractor) funcChunk(fset *token.FileSet, fn *ast.FuncDecl, lines []string) domain.Chunk {
	start := fset.Position(fn.Pos()).Line
	end := fset.Position(fn.End()).Line

	chunkType := domain.ChunkFunction
	if fn.Recv != nil {
		chunkType = domain.ChunkMethod
	}

	text := extractLines(lines, start, end)
	if fn.Doc != nil {
		docStart := fset.Position(fn.Doc.Pos()).Line
		text = extractLines(lines, docStart, end)
		start = docStart
	}

	return domain.Chunk{
		Type:      chunkType,
		Name:      fn.Name.Name,
		Text:      text,
		StartLine: start,
		EndLine:   end,
	}
}

// genDeclChunks extracts type declarations. Const and var groups are kept
// as a single chunk; imports are not indexed.
func (e *GoExtractor) genDeclChunks(fset *token.FileSet, decl *ast.GenDecl, lines []string) []domain.Chunk {
	var chunks []domain.Chunk

	declStart := fset.Position(decl.Pos()).Line
	declEnd := fset.Position(decl.End()).Line

	switch decl.Tok {
	case token.TYPE:
		for _, spec := range decl.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}

			chunkType := domain.ChunkOther
			switch ts.Type.(type) {
			case *ast.StructType:
				chunkType = domain.ChunkStruct
			case *ast.InterfaceType:
				chunkType = domain.ChunkInterface
			}

			start := fset.Position(ts.Pos()).Line
			end := fset.Position(ts.End()).Line
			if decl.Lparen == token.NoPos {
				// Ungrouped declaration: span the whole "type" statement.
				start = declStart
				end = declEnd
			}

			if ts.Doc != nil {
				start = fset.Position(ts.Doc.Pos()).Line
			} else if decl.Doc != nil && decl.Lparen == token.NoPos {
				start = fset.Position(decl.Doc.Pos()).Line
			}

			chunks = append(chunks, domain.Chunk{
				Type:      chunkType,
				Name:      ts.Name.Name,
				Text:      extractLines(lines, start, end),
				StartLine: start,
				EndLine:   end,
			})
		}

	case token.CONST, token.VAR:
		start := declStart
		if decl.Doc != nil {
			start = fset.Position(decl.Doc.Pos()).Line
		}

		var names []string
		for _, spec := range decl.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for _, name := range vs.Names {
				names = append(names, name.Name)
			}
		}

		chunks = append(chunks, domain.Chunk{
			Type:      domain.ChunkOther,
			Name:      strings.Join(names, ", "),
			Text:      extractLines(lines, start, declEnd),
			StartLine: start,
			EndLine:   declEnd,
		})
	}

	return chunks
}

// extractLines extracts lines from a slice (1-indexed, inclusive).
func extractLines(lines []string, startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > len(lines) {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}
