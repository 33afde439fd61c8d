package analyzer

import (
	"strings"
	"unicode"
)

// verbPrefixes maps handler-name prefixes to HTTP methods, checked longest
// first. Methods with no matching prefix are treated as internal helpers and
// produce no endpoint.
var verbPrefixes = []struct {
	prefix string
	method string
}{
	{"getAll", "GET"},
	{"get", "GET"},
	{"find", "GET"},
	{"list", "GET"},
	{"fetch", "GET"},
	{"search", "GET"},
	{"create", "POST"},
	{"add", "POST"},
	{"post", "POST"},
	{"update", "PUT"},
	{"replace", "PUT"},
	{"put", "PUT"},
	{"patch", "PATCH"},
	{"modify", "PATCH"},
	{"delete", "DELETE"},
	{"remove", "DELETE"},
}

// httpMethodFor infers the HTTP method from a handler name by prefix
// convention. Returns "" for names that map to no endpoint.
func httpMethodFor(handler string) string {
	for _, vp := range verbPrefixes {
		if strings.HasPrefix(handler, vp.prefix) {
			rest := handler[len(vp.prefix):]
			// "getter" must not match "get"; the prefix must end a camelCase word.
			if rest == "" || unicode.IsUpper(rune(rest[0])) || rest[0] == '_' {
				return vp.method
			}
		}
	}
	return ""
}

// controllerBasePath derives the route prefix from a controller class name:
// UsersController -> /users, ApiKeysController -> /api-keys.
func controllerBasePath(className string) string {
	name := strings.TrimSuffix(className, "Controller")
	if name == "" {
		return "/"
	}
	return "/" + kebabCase(name)
}

// routePath builds the endpoint path from the controller base and the
// handler's path parameters.
func routePath(basePath string, params []Parameter) string {
	path := basePath
	for _, p := range params {
		if p.In == "path" {
			path += "/:" + p.Name
		}
	}
	return path
}

// kebabCase converts CamelCase to kebab-case
func kebabCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// primitiveTypes are TypeScript types that never reference a declaration
var primitiveTypes = map[string]bool{
	"string": true, "number": true, "boolean": true, "any": true,
	"unknown": true, "void": true, "null": true, "undefined": true,
	"object": true, "never": true, "bigint": true, "symbol": true,
	"Date": true, "Promise": true,
}

// isPathParamName reports whether a parameter name is a path segment by
// convention (id or *Id)
func isPathParamName(name string) bool {
	return name == "id" || strings.HasSuffix(name, "Id")
}

// baseTypeName strips generics, arrays, and promise wrappers from a type
// expression and returns the head identifier: Promise<User[]> -> User.
func baseTypeName(typeExpr string) string {
	t := strings.TrimSpace(typeExpr)

	for {
		switch {
		case strings.HasPrefix(t, "Promise<") && strings.HasSuffix(t, ">"):
			t = t[len("Promise<") : len(t)-1]
		case strings.HasPrefix(t, "Array<") && strings.HasSuffix(t, ">"):
			t = t[len("Array<") : len(t)-1]
		case strings.HasSuffix(t, "[]"):
			t = t[:len(t)-2]
		default:
			if idx := strings.IndexAny(t, "<|&"); idx >= 0 {
				t = t[:idx]
			}
			return strings.TrimSpace(t)
		}
		t = strings.TrimSpace(t)
	}
}
