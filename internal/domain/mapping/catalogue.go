package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalogue is a source of mappings.
type Catalogue interface {
	Mappings(ctx context.Context) ([]Mapping, error)
}

// FileCatalogue reads mappings from a JSON or YAML file, chosen by extension.
type FileCatalogue struct {
	path string
}

func NewFileCatalogue(path string) *FileCatalogue {
	return &FileCatalogue{path: path}
}

func (f *FileCatalogue) Mappings(_ context.Context) ([]Mapping, error) {
	var mappings []Mapping
	if err := decodeFile(f.path, &mappings); err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}
	return mappings, nil
}

// LoadConceptTree reads a concept tree from a JSON or YAML file.
func LoadConceptTree(path string) (*ConceptTree, error) {
	var tree ConceptTree
	if err := decodeFile(path, &tree); err != nil {
		return nil, fmt.Errorf("load concept tree: %w", err)
	}
	return &tree, nil
}

// Load builds a Context from the catalogue and an optional concept tree.
func Load(ctx context.Context, catalogue Catalogue, tree *ConceptTree) (*Context, error) {
	mappings, err := catalogue.Mappings(ctx)
	if err != nil {
		return nil, err
	}
	return NewContext(mappings, tree)
}

func decodeFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
