// Package analyzer derives API endpoint descriptions from web-framework
// source files by static analysis, without relying on runtime decorators.
//
// A file qualifies for analysis when it exports at least one recognized
// top-level construct (controller class, DTO class, interface, enum, or type
// alias). Files with nothing recognizable yield a nil analysis ("not
// applicable") and must not be cached.
package analyzer

// FileKind classifies what a file contributes to the API surface
type FileKind string

const (
	// KindController marks a file exporting a controller class with endpoints
	KindController FileKind = "controller"
	// KindShared marks a file exporting only types (DTOs, interfaces, enums)
	KindShared FileKind = "shared"
)

// FileAnalysis is the per-file analysis result: the opaque payload stored in
// the cache store and consumed by the OpenAPI assembler.
type FileAnalysis struct {
	Path         string        `json:"path"`
	Kind         FileKind      `json:"kind"`
	Endpoints    []Endpoint    `json:"endpoints,omitempty"`
	Declarations []Declaration `json:"declarations,omitempty"`

	// Dependencies lists canonical paths of project files this analysis
	// depended on: imports and referenced type declarations.
	Dependencies []string `json:"dependencies,omitempty"`
	// Inherits lists canonical paths of files whose declarations this
	// file's declarations extend or implement.
	Inherits []string `json:"inherits,omitempty"`
}

// Endpoint describes one derived API operation
type Endpoint struct {
	Method       string      `json:"method"`
	Path         string      `json:"path"`
	Controller   string      `json:"controller"`
	Handler      string      `json:"handler"`
	Parameters   []Parameter `json:"parameters,omitempty"`
	RequestType  string      `json:"requestType,omitempty"`
	ResponseType string      `json:"responseType,omitempty"`
	Tags         []string    `json:"tags,omitempty"`
}

// Parameter describes a path or query parameter of an endpoint
type Parameter struct {
	Name     string `json:"name"`
	In       string `json:"in"` // "path" or "query"
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Declaration describes an exported type usable as a schema component
type Declaration struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"` // "class", "interface", "enum", "typeAlias"
	Fields  []Field  `json:"fields,omitempty"`
	Extends []string `json:"extends,omitempty"` // declaration names, not paths
}

// Field describes one property of a declaration
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// HasEndpoints reports whether the analysis contributes API operations
func (a *FileAnalysis) HasEndpoints() bool {
	return a != nil && len(a.Endpoints) > 0
}
