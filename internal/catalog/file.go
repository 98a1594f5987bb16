package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

// FileSource reads the catalog from a YAML or JSON file on every snapshot
type FileSource struct {
	Path string
}

// Snapshot loads the file at s.Path
func (s FileSource) Snapshot(ctx context.Context) (Map, error) {
	if err := ctx.Err(); err != nil {
		return Map{}, err
	}
	return LoadFile(s.Path)
}

// LoadFile parses a catalog file. JSON is accepted as the YAML subset it is.
func LoadFile(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Map{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document of the form {code: [{sku, titulo, qtd, cor, tamanho}]}
func Parse(data []byte) (Map, error) {
	var entries map[string][]shipment.LineItem
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return Map{}, fmt.Errorf("parse catalog: %w", err)
	}
	return NewMap(entries)
}

// Marshal encodes a catalog as YAML
func Marshal(m Map) ([]byte, error) {
	return yaml.Marshal(m.Entries())
}
