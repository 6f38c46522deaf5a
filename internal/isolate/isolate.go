// Package isolate extracts a single exported function, together with the
// top-level declarations it references, from a TypeScript source file.
package isolate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var (
	// ErrNotFound means no top-level function with the requested name exists.
	ErrNotFound = errors.New("function not found")
	// ErrNotExported means the function exists at the top level but is not exported.
	ErrNotExported = errors.New("function is not exported")
	// ErrUnbalanced means the function body never closes.
	ErrUnbalanced = errors.New("function body has unbalanced braces")
)

// Snippet is the result of isolating one function.
type Snippet struct {
	Name          string
	Text          string
	Function      string
	Dependencies  []string
	DefaultExport bool
	Async         bool
}

// Isolator parses source with a fixed tree-sitter grammar.
type Isolator struct {
	lang *sitter.Language
}

// New returns an Isolator for the given language tag. "tsx" selects the TSX
// grammar; everything else is parsed as TypeScript.
func New(lang string) *Isolator {
	if lang == "tsx" {
		return &Isolator{lang: tsx.GetLanguage()}
	}
	return &Isolator{lang: typescript.GetLanguage()}
}

// Isolate returns the minimal snippet for name in a TypeScript source. On any
// error the returned text is empty.
func Isolate(source, name string) (string, error) {
	s, err := New("typescript").Extract(context.Background(), source, name)
	if err != nil {
		return "", err
	}
	return s.Text, nil
}

// Extract locates the exported top-level function called name and assembles
// its snippet: referenced imports and declarations in source order, followed by
// the function with its leading doc comment.
func (iso *Isolator) Extract(ctx context.Context, source, name string) (*Snippet, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	src := []byte(source)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(iso.lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	defer tree.Close()
	root := tree.RootNode()

	idx, fn, def, err := findFunction(root, src, name)
	if err != nil {
		return nil, err
	}
	stmt := root.Child(idx)

	body := fn.ChildByFieldName("body")
	if body == nil || int(body.StartByte()) >= len(src) || src[body.StartByte()] != '{' {
		return nil, ErrUnbalanced
	}
	end := matchBrace(source, int(body.StartByte()), regexSpans(body)...)
	if end < 0 {
		return nil, ErrUnbalanced
	}

	start := int(stmt.StartByte())
	if doc := docComment(root, idx, src); doc != nil {
		start = int(doc.StartByte())
	}
	function := source[start : end+1]

	used := identifiers(fn, src)
	var deps []string
	for i := 0; i < int(root.ChildCount()); i++ {
		if i == idx {
			continue
		}
		child := root.Child(i)
		for _, declared := range declaredNames(child, src) {
			if used[declared] {
				deps = append(deps, child.Content(src))
				break
			}
		}
	}

	pieces := append(append([]string{}, deps...), function)
	return &Snippet{
		Name:          name,
		Text:          strings.Join(pieces, "\n\n"),
		Function:      function,
		Dependencies:  deps,
		DefaultExport: def,
		Async:         hasChild(fn, "async"),
	}, nil
}

// findFunction returns the index of the program-level statement that declares
// name, the function node itself, and whether it is a default export.
func findFunction(root *sitter.Node, src []byte, name string) (int, *sitter.Node, bool, error) {
	unexported := false
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "export_statement":
			fn := exportedFunction(child)
			if fn != nil && fieldText(fn, "name", src) == name {
				return i, fn, hasChild(child, "default"), nil
			}
		case "function_declaration":
			if fieldText(child, "name", src) == name {
				unexported = true
			}
		}
	}
	if unexported {
		return -1, nil, false, ErrNotExported
	}
	return -1, nil, false, ErrNotFound
}

func exportedFunction(stmt *sitter.Node) *sitter.Node {
	if decl := stmt.ChildByFieldName("declaration"); decl != nil && decl.Type() == "function_declaration" {
		return decl
	}
	// export default function name() {} may surface as a named function expression.
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		switch c := stmt.NamedChild(i); c.Type() {
		case "function_declaration", "function_expression", "function":
			return c
		}
	}
	return nil
}

// docComment returns the /** block directly above the statement at idx, if any.
func docComment(root *sitter.Node, idx int, src []byte) *sitter.Node {
	if idx == 0 {
		return nil
	}
	prev := root.Child(idx - 1)
	if prev.Type() != "comment" || !strings.HasPrefix(prev.Content(src), "/**") {
		return nil
	}
	gap := string(src[prev.EndByte():root.Child(idx).StartByte()])
	if strings.TrimSpace(gap) != "" || strings.Count(gap, "\n") > 1 {
		return nil
	}
	return prev
}

func fieldText(n *sitter.Node, field string, src []byte) string {
	if f := n.ChildByFieldName(field); f != nil {
		return f.Content(src)
	}
	return ""
}

func hasChild(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}
