package openapi

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"oag/internal/analyzer"
	"oag/internal/config"
)

func sampleAnalyses() map[string]*analyzer.FileAnalysis {
	return map[string]*analyzer.FileAnalysis{
		"/proj/users.controller.ts": {
			Path: "/proj/users.controller.ts",
			Kind: analyzer.KindController,
			Endpoints: []analyzer.Endpoint{
				{
					Method:     "GET",
					Path:       "/users/:id",
					Controller: "UsersController",
					Handler:    "getUser",
					Parameters: []analyzer.Parameter{
						{Name: "id", In: "path", Type: "string", Required: true},
					},
					ResponseType: "UserDto",
					Tags:         []string{"users"},
				},
				{
					Method:      "POST",
					Path:        "/users",
					Controller:  "UsersController",
					Handler:     "createUser",
					RequestType: "UserDto",
					Tags:        []string{"users"},
				},
			},
			Declarations: []analyzer.Declaration{
				{Name: "UsersController", Kind: "class"},
			},
		},
		"/proj/user.dto.ts": {
			Path: "/proj/user.dto.ts",
			Kind: analyzer.KindShared,
			Declarations: []analyzer.Declaration{
				{
					Name: "UserDto",
					Kind: "class",
					Fields: []analyzer.Field{
						{Name: "name", Type: "string"},
						{Name: "age", Type: "number", Optional: true},
						{Name: "createdAt", Type: "Date"},
						{Name: "roles", Type: "Role[]"},
					},
					Extends: []string{"BaseDto"},
				},
				{
					Name: "BaseDto",
					Kind: "class",
					Fields: []analyzer.Field{
						{Name: "id", Type: "string"},
					},
				},
				{
					Name: "Role",
					Kind: "enum",
					Fields: []analyzer.Field{
						{Name: "Admin", Type: "enumMember"},
						{Name: "Member", Type: "enumMember"},
					},
				},
			},
		},
		"/proj/skipped.ts": nil,
	}
}

func testOutput() config.OutputConfig {
	return config.OutputConfig{
		Title:      "Users API",
		APIVersion: "2.1.0",
		ServerURL:  "http://localhost:3000",
	}
}

func TestBuildPaths(t *testing.T) {
	doc := Build(testOutput(), sampleAnalyses())

	if doc.OpenAPI != "3.0.3" {
		t.Errorf("openapi version = %s", doc.OpenAPI)
	}
	if doc.Info.Title != "Users API" || doc.Info.Version != "2.1.0" {
		t.Errorf("info = %+v", doc.Info)
	}

	item, ok := doc.Paths["/users/{id}"]
	if !ok {
		t.Fatalf("missing templated path, have %v", pathKeys(doc))
	}
	get := item["get"]
	if get == nil {
		t.Fatal("missing GET operation")
	}
	if get.OperationID != "Users_getUser" {
		t.Errorf("operationId = %s", get.OperationID)
	}
	if len(get.Parameters) != 1 || get.Parameters[0].In != "path" {
		t.Errorf("parameters = %+v", get.Parameters)
	}
	ref := get.Responses["200"].Content["application/json"].Schema.Ref
	if ref != "#/components/schemas/UserDto" {
		t.Errorf("response ref = %s", ref)
	}

	post := doc.Paths["/users"]["post"]
	if post == nil {
		t.Fatal("missing POST operation")
	}
	if post.RequestBody == nil || !post.RequestBody.Required {
		t.Error("expected required request body")
	}
	if _, ok := post.Responses["201"]; !ok {
		t.Error("POST should respond 201")
	}
}

func TestBuildSchemas(t *testing.T) {
	doc := Build(testOutput(), sampleAnalyses())

	if doc.Components == nil {
		t.Fatal("missing components")
	}
	schemas := doc.Components.Schemas

	user := schemas["UserDto"]
	if user == nil {
		t.Fatal("missing UserDto schema")
	}
	if len(user.AllOf) != 2 {
		t.Fatalf("expected allOf with base ref and own shape, got %+v", user)
	}
	if user.AllOf[0].Ref != "#/components/schemas/BaseDto" {
		t.Errorf("base ref = %s", user.AllOf[0].Ref)
	}

	own := user.AllOf[1]
	if own.Properties["name"].Type != "string" {
		t.Errorf("name schema = %+v", own.Properties["name"])
	}
	if own.Properties["createdAt"].Format != "date-time" {
		t.Errorf("createdAt schema = %+v", own.Properties["createdAt"])
	}
	roles := own.Properties["roles"]
	if roles.Type != "array" || roles.Items.Ref != "#/components/schemas/Role" {
		t.Errorf("roles schema = %+v", roles)
	}
	for _, req := range own.Required {
		if req == "age" {
			t.Error("optional field listed as required")
		}
	}

	role := schemas["Role"]
	if role == nil || role.Type != "string" || len(role.Enum) != 2 {
		t.Errorf("Role schema = %+v", role)
	}
}

func TestTypeSchemaNullableUnion(t *testing.T) {
	s := typeSchema("string | null", map[string]bool{})
	if s.Type != "string" || !s.Nullable {
		t.Errorf("nullable union schema = %+v", s)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	doc := Build(testOutput(), sampleAnalyses())

	jsonData, err := Encode(doc, "json")
	if err != nil {
		t.Fatalf("JSON encode failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(jsonData, &decoded); err != nil {
		t.Fatalf("encoded JSON is invalid: %v", err)
	}
	if decoded["openapi"] != "3.0.3" {
		t.Error("openapi field lost in JSON")
	}

	yamlData, err := Encode(doc, "yaml")
	if err != nil {
		t.Fatalf("YAML encode failed: %v", err)
	}
	var decodedYAML map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &decodedYAML); err != nil {
		t.Fatalf("encoded YAML is invalid: %v", err)
	}
	if !strings.Contains(string(yamlData), "openapi: 3.0.3") {
		t.Error("openapi field lost in YAML")
	}

	if _, err := Encode(doc, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func pathKeys(doc *Document) []string {
	var out []string
	for k := range doc.Paths {
		out = append(out, k)
	}
	return out
}
