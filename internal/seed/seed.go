// Package seed provides the default users and todos shown before anything
// has been persisted.
package seed

import (
	_ "embed"
	"fmt"

	"github.com/jjudge-oj/roster/types"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var raw []byte

// Data is the decoded seed document.
type Data struct {
	Users []types.User     `yaml:"users"`
	Todos []types.TodoItem `yaml:"todos"`
}

// Load decodes the embedded seed document. Every call returns fresh slices.
func Load() (Data, error) {
	return Parse(raw)
}

// Parse decodes a seed document.
func Parse(doc []byte) (Data, error) {
	var d Data
	if err := yaml.Unmarshal(doc, &d); err != nil {
		return Data{}, fmt.Errorf("decode seed: %w", err)
	}
	return d, nil
}

// Users returns the default user directory.
func Users() ([]types.User, error) {
	d, err := Load()
	if err != nil {
		return nil, err
	}
	return d.Users, nil
}

// Todos returns the default todo list.
func Todos() ([]types.TodoItem, error) {
	d, err := Load()
	if err != nil {
		return nil, err
	}
	return d.Todos, nil
}
