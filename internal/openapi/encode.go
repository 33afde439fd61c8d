package openapi

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// EncodeJSON renders the document as indented JSON.
func EncodeJSON(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document as JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// EncodeYAML renders the document as YAML.
func EncodeYAML(doc *Document) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document as YAML: %w", err)
	}
	return data, nil
}

// Encode renders the document in the requested format ("json" or "yaml").
func Encode(doc *Document, format string) ([]byte, error) {
	switch format {
	case "yaml", "yml":
		return EncodeYAML(doc)
	case "json", "":
		return EncodeJSON(doc)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
