package transform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type definitionsFile struct {
	Transforms []Named `yaml:"transforms"`
}

// LoadDefinitions reads named transforms from a YAML file:
//
//	transforms:
//	  - name: thumbnail
//	    steps:
//	      - type: resize
//	        params: {width: 200}
func LoadDefinitions(path string) ([]Named, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transform definitions %s: %w", path, err)
	}
	named, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("parse transform definitions %s: %w", path, err)
	}
	return named, nil
}

func ParseDefinitions(data []byte) ([]Named, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file definitionsFile
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	seen := make(map[string]struct{}, len(file.Transforms))
	for i, n := range file.Transforms {
		name := strings.TrimSpace(n.Name)
		if name == "" {
			return nil, fmt.Errorf("transforms[%d].name is required", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("transforms[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}
		file.Transforms[i].Name = name

		for j, step := range n.Steps {
			if strings.TrimSpace(step.Type) == "" {
				return nil, fmt.Errorf("transforms[%d].steps[%d].type is required", i, j)
			}
			if step.Params == nil {
				file.Transforms[i].Steps[j].Params = Params{}
			}
		}
	}
	return file.Transforms, nil
}

// ReloadDefinitions reads path and syncs the registry's named transforms to
// it. The registry is left untouched when the file cannot be loaded.
func ReloadDefinitions(r *Registry, path string) (bound, unbound []string, err error) {
	defs, err := LoadDefinitions(path)
	if err != nil {
		return nil, nil, err
	}
	unbound = r.SyncNamed(defs)
	for _, n := range defs {
		bound = append(bound, n.Name)
	}
	return bound, unbound, nil
}
