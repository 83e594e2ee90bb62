package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/petrijr/toolflow/pkg/api"
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("unknown document format")

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Parse decodes data. Unknown fields are rejected. YAML input may hold
// several documents separated by "---"; empty documents are skipped. TOML
// and JSON hold exactly one.
func Parse(data []byte, format Format) ([]*Document, error) {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		var docs []*Document
		for {
			var doc Document
			if err := dec.Decode(&doc); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
			if doc.ID == "" && len(doc.Steps) == 0 {
				continue
			}
			docs = append(docs, &doc)
		}
		return docs, nil

	case FormatTOML:
		var doc Document
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse toml: unknown keys %v", undecoded)
		}
		return []*Document{&doc}, nil

	case FormatJSON:
		var doc Document
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return []*Document{&doc}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// LoadFile reads every document in path.
func LoadFile(path string) ([]*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	docs, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no workflows found in %s", path)
	}
	return docs, nil
}

// LoadWorkflows reads path and builds and validates every workflow in it.
func LoadWorkflows(path string) ([]*api.Workflow, error) {
	docs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	wfs := make([]*api.Workflow, 0, len(docs))
	for _, doc := range docs {
		wf, err := doc.Workflow()
		if err != nil {
			return nil, fmt.Errorf("workflow %q: %w", doc.ID, err)
		}
		if err := wf.Validate(); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", doc.ID, err)
		}
		wfs = append(wfs, wf)
	}
	return wfs, nil
}

// Encode writes doc to w.
func Encode(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(doc)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
