// Package transform applies per-organisation scripts to a personnel folder before it is
// submitted to the archive.
package transform

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

// Script rewrites a folder document. Implementations must not retain doc.
type Script interface {
	Name() string
	Apply(ctx context.Context, doc map[string]any) (map[string]any, error)
}

// LoadScript reads a script file. Files ending in .json, or whose content starts with "[",
// are RFC 6902 JSON patches; anything else is a Go script.
func LoadScript(path string) (Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read transformation script %s", path)
	}
	return ParseScript(filepath.Base(path), raw)
}

func ParseScript(name string, raw []byte) (Script, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.Errorf("transformation script %s is empty", name)
	}
	if strings.EqualFold(filepath.Ext(name), ".json") || trimmed[0] == '[' {
		return NewPatchScript(name, trimmed)
	}
	return NewGoScript(name, string(trimmed))
}

func LoadScripts(paths []string) ([]Script, error) {
	scripts := make([]Script, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScript(p)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}
