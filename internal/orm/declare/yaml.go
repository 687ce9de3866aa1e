package declare

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the root of a declaration file
type Document struct {
	Entities []EntityDeclaration `yaml:"entities"`
}

// YAMLProvider reads declarations from a YAML document
type YAMLProvider struct {
	path string
	data []byte
}

// NewYAMLFileProvider reads declarations from the file at path on demand
func NewYAMLFileProvider(path string) *YAMLProvider {
	return &YAMLProvider{path: path}
}

// NewYAMLProvider reads declarations from an in-memory document
func NewYAMLProvider(data []byte) *YAMLProvider {
	return &YAMLProvider{data: data}
}

// Declarations parses and validates the document
func (p *YAMLProvider) Declarations() ([]EntityDeclaration, error) {
	data := p.data
	if data == nil {
		raw, err := os.ReadFile(p.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read declarations: %w", err)
		}
		data = raw
	}

	decls, err := Decode(bytes.NewReader(data))
	if err != nil {
		if p.path != "" {
			return nil, fmt.Errorf("%s: %w", p.path, err)
		}
		return nil, err
	}
	return decls, nil
}

// Decode parses a declaration document from r and validates it
func Decode(r io.Reader) ([]EntityDeclaration, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeclaration, err)
	}

	if err := Validate(doc.Entities); err != nil {
		return nil, err
	}
	return doc.Entities, nil
}
