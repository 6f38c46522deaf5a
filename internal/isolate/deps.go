package isolate

import (
	sitter "github.com/smacker/go-tree-sitter"
)

var identifierKinds = map[string]bool{
	"identifier":                    true,
	"type_identifier":               true,
	"property_identifier":           true,
	"shorthand_property_identifier": true,
}

// identifiers collects every identifier referenced in n, including its own name.
func identifiers(n *sitter.Node, src []byte) map[string]bool {
	out := make(map[string]bool)
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if identifierKinds[node.Type()] {
			out[node.Content(src)] = true
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
	return out
}

// declaredNames returns the bindings introduced by a program-level statement
// that may be pulled into a snippet: imports, variables, and type-level
// declarations. Functions are never included as dependencies.
func declaredNames(stmt *sitter.Node, src []byte) []string {
	switch stmt.Type() {
	case "export_statement":
		if decl := stmt.ChildByFieldName("declaration"); decl != nil {
			return declaredNames(decl, src)
		}
		return nil
	case "import_statement":
		return importBindings(stmt, src)
	case "lexical_declaration", "variable_declaration":
		var names []string
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			d := stmt.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			if name := d.ChildByFieldName("name"); name != nil {
				names = append(names, patternNames(name, src)...)
			}
		}
		return names
	case "interface_declaration", "type_alias_declaration", "enum_declaration",
		"class_declaration", "abstract_class_declaration":
		if name := fieldText(stmt, "name", src); name != "" {
			return []string{name}
		}
	}
	return nil
}

func importBindings(stmt *sitter.Node, src []byte) []string {
	var names []string
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		clause := stmt.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			c := clause.NamedChild(j)
			switch c.Type() {
			case "identifier":
				names = append(names, c.Content(src))
			case "namespace_import":
				for k := 0; k < int(c.NamedChildCount()); k++ {
					if id := c.NamedChild(k); id.Type() == "identifier" {
						names = append(names, id.Content(src))
					}
				}
			case "named_imports":
				for k := 0; k < int(c.NamedChildCount()); k++ {
					spec := c.NamedChild(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					if n := fieldText(spec, "name", src); n != "" {
						names = append(names, n)
					}
					if a := fieldText(spec, "alias", src); a != "" {
						names = append(names, a)
					}
				}
			}
		}
	}
	return names
}

// patternNames flattens identifier and destructuring patterns.
func patternNames(n *sitter.Node, src []byte) []string {
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{n.Content(src)}
	case "pair_pattern":
		if v := n.ChildByFieldName("value"); v != nil {
			return patternNames(v, src)
		}
		return nil
	}
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		names = append(names, patternNames(n.NamedChild(i), src)...)
	}
	return names
}

// regexSpans returns the byte ranges of regex literals under n in source
// order. A '}' inside a regex does not close a block.
func regexSpans(n *sitter.Node) []span {
	var out []span
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Type() == "regex" {
			out = append(out, span{int(node.StartByte()), int(node.EndByte())})
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
	return out
}
