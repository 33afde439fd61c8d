package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	oagerrors "oag/internal/errors"
	"oag/internal/logging"
	"oag/internal/paths"
)

// declarationNodeTypes are the exported top-level constructs that make a file
// eligible for analysis.
var declarationNodeTypes = []string{
	"class_declaration",
	"abstract_class_declaration",
	"interface_declaration",
	"enum_declaration",
	"type_alias_declaration",
}

// Analyzer performs static per-file analysis of web-framework sources.
type Analyzer struct {
	parser *Parser
	logger *logging.Logger
}

// New creates an analyzer.
func New(logger *logging.Logger) *Analyzer {
	return &Analyzer{
		parser: NewParser(),
		logger: logger,
	}
}

// Analyze inspects one source file and derives its API contribution.
//
// Returns (nil, nil) when the file parses but exports nothing recognizable;
// such files are not applicable and must not be cached. A non-nil error means
// the file could not be read or parsed.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*FileAnalysis, error) {
	lang, ok := LanguageFromExtension(filepath.Ext(path))
	if !ok {
		return nil, nil
	}

	source, err := os.ReadFile(paths.FromCanonical(path))
	if err != nil {
		return nil, oagerrors.New(oagerrors.IOFailure, "failed to read source file", err).WithPath(path)
	}

	root, err := a.parser.Parse(ctx, source, lang)
	if err != nil {
		return nil, oagerrors.New(oagerrors.AnalyzeFailed, "failed to parse source file", err).WithPath(path)
	}

	bindings := collectImports(root, source, path)
	bindingByName := make(map[string]string, len(bindings))
	for _, b := range bindings {
		bindingByName[b.localName] = b.path
	}

	deps := make(map[string]bool)
	inherits := make(map[string]bool)
	for _, b := range bindings {
		deps[b.path] = true
	}

	analysis := &FileAnalysis{
		Path: path,
		Kind: KindShared,
	}

	for _, decl := range exportedDeclarations(root) {
		d := a.analyzeDeclaration(decl, source, bindingByName, deps)
		if d == nil {
			continue
		}

		for _, base := range d.Extends {
			if basePath, ok := bindingByName[base]; ok {
				inherits[basePath] = true
			}
		}

		if d.Kind == "class" && strings.HasSuffix(d.Name, "Controller") {
			analysis.Kind = KindController
			endpoints := a.extractEndpoints(decl, source, d.Name, bindingByName, deps)
			analysis.Endpoints = append(analysis.Endpoints, endpoints...)
		}

		analysis.Declarations = append(analysis.Declarations, *d)
	}

	if len(analysis.Declarations) == 0 && len(analysis.Endpoints) == 0 {
		a.logger.Debug("file not applicable", map[string]interface{}{
			"path": path,
		})
		return nil, nil
	}

	analysis.Dependencies = sortedSet(deps)
	analysis.Inherits = sortedSet(inherits)

	return analysis, nil
}

// exportedDeclarations returns declaration nodes reachable through an export
// statement. Unexported declarations do not contribute to the API surface.
func exportedDeclarations(root *sitter.Node) []*sitter.Node {
	var decls []*sitter.Node
	for _, export := range findNodes(root, []string{"export_statement"}) {
		if decl := export.ChildByFieldName("declaration"); decl != nil {
			for _, t := range declarationNodeTypes {
				if decl.Type() == t {
					decls = append(decls, decl)
					break
				}
			}
		}
	}
	return decls
}

// analyzeDeclaration builds a Declaration from a class, interface, enum, or
// type alias node.
func (a *Analyzer) analyzeDeclaration(decl *sitter.Node, source []byte, bindings map[string]string, deps map[string]bool) *Declaration {
	nameNode := decl.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	d := &Declaration{Name: nodeText(nameNode, source)}

	switch decl.Type() {
	case "class_declaration", "abstract_class_declaration":
		d.Kind = "class"
		d.Extends = heritageNames(decl, source)
		d.Fields = classFields(decl, source, bindings, deps)
	case "interface_declaration":
		d.Kind = "interface"
		d.Extends = heritageNames(decl, source)
		d.Fields = interfaceFields(decl, source, bindings, deps)
	case "enum_declaration":
		d.Kind = "enum"
		d.Fields = enumMembers(decl, source)
	case "type_alias_declaration":
		d.Kind = "typeAlias"
		if value := decl.ChildByFieldName("value"); value != nil {
			d.Fields = []Field{{Name: d.Name, Type: nodeText(value, source)}}
		}
	default:
		return nil
	}

	return d
}

// heritageNames collects the base type names from extends and implements
// clauses of a class or interface.
func heritageNames(decl *sitter.Node, source []byte) []string {
	clauses := findNodes(decl, []string{"extends_clause", "implements_clause", "extends_type_clause"})

	var names []string
	seen := make(map[string]bool)
	for _, clause := range clauses {
		for _, id := range findNodes(clause, []string{"identifier", "type_identifier"}) {
			name := nodeText(id, source)
			if name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// classFields extracts public property definitions from a class body.
func classFields(decl *sitter.Node, source []byte, bindings map[string]string, deps map[string]bool) []Field {
	body := decl.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var fields []Field
	for i := uint32(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(int(i))
		if member.Type() != "public_field_definition" {
			continue
		}
		if f, ok := propertyField(member, source, bindings, deps); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// interfaceFields extracts property signatures from an interface body.
func interfaceFields(decl *sitter.Node, source []byte, bindings map[string]string, deps map[string]bool) []Field {
	body := decl.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var fields []Field
	for i := uint32(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(int(i))
		if member.Type() != "property_signature" {
			continue
		}
		if f, ok := propertyField(member, source, bindings, deps); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// propertyField converts a property node (class field or interface property
// signature) into a Field, recording type references into deps.
func propertyField(member *sitter.Node, source []byte, bindings map[string]string, deps map[string]bool) (Field, bool) {
	nameNode := member.ChildByFieldName("name")
	if nameNode == nil {
		return Field{}, false
	}

	f := Field{Name: nodeText(nameNode, source)}

	if typeNode := member.ChildByFieldName("type"); typeNode != nil {
		f.Type = annotatedType(typeNode, source)
		recordTypeRef(f.Type, bindings, deps)
	}

	for i := uint32(0); i < member.ChildCount(); i++ {
		if child := member.Child(int(i)); child != nil && child.Type() == "?" {
			f.Optional = true
			break
		}
	}

	return f, true
}

// enumMembers extracts member names from an enum body.
func enumMembers(decl *sitter.Node, source []byte) []Field {
	body := decl.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var fields []Field
	for _, member := range findNodes(body, []string{"property_identifier"}) {
		fields = append(fields, Field{Name: nodeText(member, source), Type: "enumMember"})
	}
	return fields
}

// extractEndpoints derives API operations from a controller class's methods.
func (a *Analyzer) extractEndpoints(decl *sitter.Node, source []byte, className string, bindings map[string]string, deps map[string]bool) []Endpoint {
	body := decl.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	basePath := controllerBasePath(className)
	tag := strings.TrimPrefix(basePath, "/")
	if tag == "" {
		tag = "default"
	}

	var endpoints []Endpoint
	for i := uint32(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(int(i))
		if member.Type() != "method_definition" {
			continue
		}

		nameNode := member.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		handler := nodeText(nameNode, source)
		if handler == "constructor" || strings.HasPrefix(handler, "_") {
			continue
		}

		method := httpMethodFor(handler)
		if method == "" {
			continue
		}

		ep := Endpoint{
			Method:     method,
			Controller: className,
			Handler:    handler,
			Tags:       []string{tag},
		}

		a.collectSignature(&ep, member, source, method, bindings, deps)
		ep.Path = routePath(basePath, ep.Parameters)

		endpoints = append(endpoints, ep)
	}

	return endpoints
}

// collectSignature fills parameters, request type, and response type from a
// method's formal parameters and return type annotation.
func (a *Analyzer) collectSignature(ep *Endpoint, method *sitter.Node, source []byte, httpMethod string, bindings map[string]string, deps map[string]bool) {
	hasBody := httpMethod == "POST" || httpMethod == "PUT" || httpMethod == "PATCH"

	if params := method.ChildByFieldName("parameters"); params != nil {
		for i := uint32(0); i < params.NamedChildCount(); i++ {
			param := params.NamedChild(int(i))
			if param.Type() != "required_parameter" && param.Type() != "optional_parameter" {
				continue
			}

			patternNode := param.ChildByFieldName("pattern")
			if patternNode == nil {
				continue
			}
			name := nodeText(patternNode, source)

			paramType := "any"
			if typeNode := param.ChildByFieldName("type"); typeNode != nil {
				paramType = annotatedType(typeNode, source)
				recordTypeRef(paramType, bindings, deps)
			}

			switch {
			case isPathParamName(name):
				ep.Parameters = append(ep.Parameters, Parameter{
					Name: name, In: "path", Type: paramType, Required: true,
				})
			case hasBody && !primitiveTypes[baseTypeName(paramType)]:
				// First non-primitive parameter of a mutating method is the body.
				if ep.RequestType == "" {
					ep.RequestType = baseTypeName(paramType)
				}
			default:
				ep.Parameters = append(ep.Parameters, Parameter{
					Name: name, In: "query", Type: paramType,
					Required: param.Type() == "required_parameter",
				})
			}
		}
	}

	if ret := method.ChildByFieldName("return_type"); ret != nil {
		retType := annotatedType(ret, source)
		recordTypeRef(retType, bindings, deps)
		if head := baseTypeName(retType); head != "" && head != "void" {
			ep.ResponseType = head
		}
	}
}

// annotatedType returns the type expression inside a type_annotation node.
func annotatedType(node *sitter.Node, source []byte) string {
	if node.Type() == "type_annotation" && node.NamedChildCount() > 0 {
		return nodeText(node.NamedChild(0), source)
	}
	return strings.TrimPrefix(strings.TrimSpace(nodeText(node, source)), ": ")
}

// recordTypeRef marks the imported file backing a type expression as a
// dependency when the type's head identifier is an import binding.
func recordTypeRef(typeExpr string, bindings map[string]string, deps map[string]bool) {
	head := baseTypeName(typeExpr)
	if head == "" || primitiveTypes[head] {
		return
	}
	if path, ok := bindings[head]; ok {
		deps[path] = true
	}
}

func sortedSet(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
