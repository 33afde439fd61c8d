package analyzer

import (
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"oag/internal/paths"
)

// importBinding links a locally visible name to the project file it came from
type importBinding struct {
	localName string
	path      string // canonical path of the resolved project file
}

// resolveExtensions is the order module specifiers are tried against disk,
// mirroring the framework's own resolution for extensionless imports.
var resolveExtensions = []string{"", ".ts", ".tsx", ".js"}

// collectImports extracts import bindings from the AST. Only relative imports
// that resolve to an existing project file become dependencies; package
// imports (framework, stdlib) are ignored.
func collectImports(root *sitter.Node, source []byte, filePath string) []importBinding {
	var bindings []importBinding

	for _, imp := range findNodes(root, []string{"import_statement"}) {
		sourceNode := imp.ChildByFieldName("source")
		specifier := strings.Trim(nodeText(sourceNode, source), "'\"`")
		if specifier == "" || !strings.HasPrefix(specifier, ".") {
			continue
		}

		resolved := resolveImport(filePath, specifier)
		if resolved == "" {
			continue
		}

		for _, name := range importedNames(imp, source) {
			bindings = append(bindings, importBinding{localName: name, path: resolved})
		}
	}

	return bindings
}

// importedNames returns the local names bound by one import statement:
// default imports, named imports (with aliases), and namespace imports.
func importedNames(imp *sitter.Node, source []byte) []string {
	var names []string

	for i := uint32(0); i < imp.ChildCount(); i++ {
		child := imp.Child(int(i))
		if child == nil || child.Type() != "import_clause" {
			continue
		}

		for j := uint32(0); j < child.NamedChildCount(); j++ {
			clause := child.NamedChild(int(j))
			switch clause.Type() {
			case "identifier": // default import
				names = append(names, nodeText(clause, source))
			case "namespace_import":
				for k := uint32(0); k < clause.NamedChildCount(); k++ {
					if id := clause.NamedChild(int(k)); id.Type() == "identifier" {
						names = append(names, nodeText(id, source))
					}
				}
			case "named_imports":
				for k := uint32(0); k < clause.NamedChildCount(); k++ {
					spec := clause.NamedChild(int(k))
					if spec.Type() != "import_specifier" {
						continue
					}
					// The alias is what's visible locally; fall back to the name.
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						names = append(names, nodeText(alias, source))
					} else if name := spec.ChildByFieldName("name"); name != nil {
						names = append(names, nodeText(name, source))
					}
				}
			}
		}
	}

	return names
}

// resolveImport resolves a relative module specifier against the importing
// file's directory, trying the framework's extension and index conventions.
// Returns "" when no candidate exists on disk.
func resolveImport(fromPath, specifier string) string {
	base := filepath.Join(filepath.Dir(paths.FromCanonical(fromPath)), specifier)

	for _, ext := range resolveExtensions {
		candidate := base + ext
		if isFile(candidate) {
			canonical, err := paths.Canonicalize(candidate)
			if err != nil {
				return ""
			}
			return canonical
		}
	}

	// Directory import: ./dto -> ./dto/index.ts
	for _, ext := range []string{".ts", ".tsx", ".js"} {
		candidate := filepath.Join(base, "index"+ext)
		if isFile(candidate) {
			canonical, err := paths.Canonicalize(candidate)
			if err != nil {
				return ""
			}
			return canonical
		}
	}

	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
