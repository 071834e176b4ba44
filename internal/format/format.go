// Package format decodes the YAML and TOML input documents of a calculation
// (job files, exposure, fragility models, ground-motion fields). The
// encoding is chosen from the file extension.
package format

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xtxerr/tremor/internal/errors"
	"gopkg.in/yaml.v3"
)

// Kind is a document encoding.
type Kind string

const (
	YAML Kind = "yaml"
	TOML Kind = "toml"
)

// KindOf returns the encoding of path based on its extension.
func KindOf(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return "", fmt.Errorf("%s: %w", path, errors.ErrUnsupportedFormat)
}

// DecodeFile reads path and decodes it into v.
func DecodeFile(path string, v any) error {
	kind, err := KindOf(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := Decode(kind, data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Decode decodes data of the given kind into v. Unknown TOML keys are
// rejected; YAML documents must only use known fields as well.
func Decode(kind Kind, data []byte, v any) error {
	switch kind {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(v)
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}
	return fmt.Errorf("kind %q: %w", kind, errors.ErrUnsupportedFormat)
}

// EncodeFile encodes v according to the extension of path and writes it.
func EncodeFile(path string, v any) error {
	kind, err := KindOf(path)
	if err != nil {
		return err
	}

	var data []byte
	switch kind {
	case YAML:
		data, err = yaml.Marshal(v)
	case TOML:
		data, err = toml.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
