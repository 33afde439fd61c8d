package openapi

import (
	"fmt"
	"sort"
	"strings"

	"oag/internal/analyzer"
	"oag/internal/config"
)

// Build assembles a document from all cached analyses. Nil analyses (failed
// or not-applicable files) are skipped.
func Build(out config.OutputConfig, analyses map[string]*analyzer.FileAnalysis) *Document {
	doc := &Document{
		OpenAPI: "3.0.3",
		Info: Info{
			Title:       out.Title,
			Version:     out.APIVersion,
			Description: out.Description,
		},
		Paths: make(map[string]PathItem),
	}
	if out.ServerURL != "" {
		doc.Servers = []Server{{URL: out.ServerURL}}
	}

	declared := declaredNames(analyses)
	schemas := make(map[string]*Schema)

	// Deterministic output: files in path order, members in source order.
	for _, path := range sortedKeys(analyses) {
		analysis := analyses[path]
		if analysis == nil {
			continue
		}
		for _, decl := range analysis.Declarations {
			// Controllers are operation sources, not data shapes.
			if decl.Kind == "class" && strings.HasSuffix(decl.Name, "Controller") {
				continue
			}
			if schema := declarationSchema(decl, declared); schema != nil {
				schemas[decl.Name] = schema
			}
		}
		for _, ep := range analysis.Endpoints {
			addEndpoint(doc, ep, declared)
		}
	}

	if len(schemas) > 0 {
		doc.Components = &Components{Schemas: schemas}
	}
	return doc
}

func addEndpoint(doc *Document, ep analyzer.Endpoint, declared map[string]bool) {
	// OpenAPI path templates use {id}, not the framework's :id.
	path := templatePath(ep.Path)
	item, ok := doc.Paths[path]
	if !ok {
		item = make(PathItem)
		doc.Paths[path] = item
	}

	op := &Operation{
		OperationID: fmt.Sprintf("%s_%s", strings.TrimSuffix(ep.Controller, "Controller"), ep.Handler),
		Tags:        ep.Tags,
		Responses:   make(map[string]Response),
	}

	for _, p := range ep.Parameters {
		op.Parameters = append(op.Parameters, Parameter{
			Name:     p.Name,
			In:       p.In,
			Required: p.Required,
			Schema:   typeSchema(p.Type, declared),
		})
	}

	if ep.RequestType != "" {
		op.RequestBody = &RequestBody{
			Required: true,
			Content: map[string]MediaType{
				"application/json": {Schema: typeSchema(ep.RequestType, declared)},
			},
		}
	}

	resp := Response{Description: "Successful response"}
	if ep.ResponseType != "" {
		resp.Content = map[string]MediaType{
			"application/json": {Schema: typeSchema(ep.ResponseType, declared)},
		}
	}
	status := "200"
	if ep.Method == "POST" {
		status = "201"
	}
	op.Responses[status] = resp

	item[strings.ToLower(ep.Method)] = op
}

// declarationSchema converts one exported declaration into a component
// schema. Type aliases of object-like expressions are skipped; only named
// shapes become components.
func declarationSchema(decl analyzer.Declaration, declared map[string]bool) *Schema {
	switch decl.Kind {
	case "enum":
		schema := &Schema{Type: "string"}
		for _, f := range decl.Fields {
			schema.Enum = append(schema.Enum, f.Name)
		}
		return schema

	case "class", "interface":
		obj := &Schema{
			Type:       "object",
			Properties: make(map[string]*Schema),
		}
		for _, f := range decl.Fields {
			obj.Properties[f.Name] = typeSchema(f.Type, declared)
			if !f.Optional {
				obj.Required = append(obj.Required, f.Name)
			}
		}
		sort.Strings(obj.Required)

		var bases []*Schema
		for _, base := range decl.Extends {
			if declared[base] {
				bases = append(bases, &Schema{Ref: componentRef(base)})
			}
		}
		if len(bases) > 0 {
			return &Schema{AllOf: append(bases, obj)}
		}
		return obj

	case "typeAlias":
		if len(decl.Fields) == 1 {
			return typeSchema(decl.Fields[0].Type, declared)
		}
		return &Schema{Type: "object"}

	default:
		return nil
	}
}

// typeSchema maps a TypeScript type expression to a schema.
func typeSchema(typeExpr string, declared map[string]bool) *Schema {
	t := strings.TrimSpace(typeExpr)

	if strings.HasPrefix(t, "Promise<") && strings.HasSuffix(t, ">") {
		return typeSchema(t[len("Promise<"):len(t)-1], declared)
	}
	if strings.HasSuffix(t, "[]") {
		return &Schema{Type: "array", Items: typeSchema(t[:len(t)-2], declared)}
	}
	if strings.HasPrefix(t, "Array<") && strings.HasSuffix(t, ">") {
		return &Schema{Type: "array", Items: typeSchema(t[len("Array<"):len(t)-1], declared)}
	}

	// Nullable unions: T | null / T | undefined.
	if idx := strings.Index(t, "|"); idx >= 0 {
		parts := strings.Split(t, "|")
		var nonNull []string
		nullable := false
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "null" || p == "undefined" {
				nullable = true
			} else if p != "" {
				nonNull = append(nonNull, p)
			}
		}
		if len(nonNull) == 1 {
			schema := typeSchema(nonNull[0], declared)
			schema.Nullable = schema.Nullable || nullable
			return schema
		}
		return &Schema{}
	}

	switch t {
	case "string":
		return &Schema{Type: "string"}
	case "number":
		return &Schema{Type: "number"}
	case "boolean":
		return &Schema{Type: "boolean"}
	case "Date":
		return &Schema{Type: "string", Format: "date-time"}
	case "any", "unknown", "object", "":
		return &Schema{}
	case "void", "null", "undefined", "never":
		return &Schema{}
	}

	if declared[t] {
		return &Schema{Ref: componentRef(t)}
	}
	return &Schema{Type: "object"}
}

func componentRef(name string) string {
	return "#/components/schemas/" + name
}

// templatePath rewrites :param segments into {param} templates.
func templatePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// declaredNames collects every declaration name across all analyses.
func declaredNames(analyses map[string]*analyzer.FileAnalysis) map[string]bool {
	names := make(map[string]bool)
	for _, analysis := range analyses {
		if analysis == nil {
			continue
		}
		for _, decl := range analysis.Declarations {
			names[decl.Name] = true
		}
	}
	return names
}

func sortedKeys(m map[string]*analyzer.FileAnalysis) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
