// Package recipes stores named instructions so common refinements can be
// reused with --recipe.
package recipes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the recipe file inside the config directory.
const FileName = "recipes.yaml"

// ErrNotFound is returned by Find and Remove for an unknown name.
var ErrNotFound = errors.New("recipe not found")

var slug = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Recipe is a named instruction.
type Recipe struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Instruction string `yaml:"instruction" json:"instruction"`
	Builtin     bool   `yaml:"-" json:"builtin,omitempty"`
}

// Builtins are always available and can be shadowed by a user recipe of the
// same name.
var Builtins = []Recipe{
	{
		Name:        "clean",
		Description: "Drop incomplete rows and tidy column names",
		Instruction: "Remove every row that has an empty cell. Trim whitespace around column names and write them in Title Case. Keep all other values unchanged.",
	},
	{
		Name:        "dedupe",
		Description: "Remove duplicate rows",
		Instruction: "Remove rows that are exact duplicates of an earlier row. Keep the first occurrence and the original row order.",
	},
	{
		Name:        "trim",
		Description: "Strip stray whitespace from every cell",
		Instruction: "Remove leading and trailing whitespace from every cell. Do not change anything else.",
	},
	{
		Name:        "standardize-dates",
		Description: "Rewrite dates as YYYY-MM-DD",
		Instruction: "Rewrite every value that is a date as YYYY-MM-DD. Leave values that are not dates unchanged.",
	},
}

type file struct {
	Recipes []Recipe `yaml:"recipes"`
}

// Book is the set of user recipes backed by one file.
type Book struct {
	path    string
	recipes []Recipe
}

// DefaultPath returns recipes.yaml inside dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the recipe file. A missing file yields an empty book.
func Load(path string) (*Book, error) {
	b := &Book{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, fmt.Errorf("could not read recipes at %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid recipes file %s: %w", path, err)
	}
	for _, r := range f.Recipes {
		if err := validate(r); err != nil {
			return nil, fmt.Errorf("invalid recipes file %s: %w", path, err)
		}
	}
	b.recipes = f.Recipes
	return b, nil
}

// Save writes the user recipes back to the file.
func (b *Book) Save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0700); err != nil {
		return fmt.Errorf("could not create recipes directory: %w", err)
	}
	data, err := yaml.Marshal(file{Recipes: b.recipes})
	if err != nil {
		return fmt.Errorf("could not encode recipes: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0600); err != nil {
		return fmt.Errorf("could not write recipes: %w", err)
	}
	return nil
}

// Path returns the file backing the book.
func (b *Book) Path() string { return b.path }

// List returns user recipes and the built-ins they do not shadow, sorted by
// name.
func (b *Book) List() []Recipe {
	seen := make(map[string]bool, len(b.recipes))
	out := make([]Recipe, 0, len(b.recipes)+len(Builtins))
	for _, r := range b.recipes {
		seen[r.Name] = true
		out = append(out, r)
	}
	for _, r := range Builtins {
		if !seen[r.Name] {
			r.Builtin = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Find looks a recipe up by name, user recipes first.
func (b *Book) Find(name string) (Recipe, error) {
	name = normalize(name)
	for _, r := range b.recipes {
		if r.Name == name {
			return r, nil
		}
	}
	for _, r := range Builtins {
		if r.Name == name {
			r.Builtin = true
			return r, nil
		}
	}
	return Recipe{}, fmt.Errorf("%w: %q — run 'sheetkit recipe list'", ErrNotFound, name)
}

// Add stores r, replacing any user recipe with the same name.
func (b *Book) Add(r Recipe) error {
	r.Name = normalize(r.Name)
	r.Instruction = strings.TrimSpace(r.Instruction)
	r.Description = strings.TrimSpace(r.Description)
	r.Builtin = false
	if err := validate(r); err != nil {
		return err
	}
	for i := range b.recipes {
		if b.recipes[i].Name == r.Name {
			b.recipes[i] = r
			return nil
		}
	}
	b.recipes = append(b.recipes, r)
	return nil
}

// Remove deletes a user recipe. Built-ins cannot be removed.
func (b *Book) Remove(name string) error {
	name = normalize(name)
	for i := range b.recipes {
		if b.recipes[i].Name == name {
			b.recipes = append(b.recipes[:i], b.recipes[i+1:]...)
			return nil
		}
	}
	for _, r := range Builtins {
		if r.Name == name {
			return fmt.Errorf("recipe %q is built in and cannot be removed", name)
		}
	}
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

func validate(r Recipe) error {
	if !slug.MatchString(r.Name) {
		return fmt.Errorf("recipe name %q must be lowercase letters, digits and dashes", r.Name)
	}
	if strings.TrimSpace(r.Instruction) == "" {
		return fmt.Errorf("recipe %q has no instruction", r.Name)
	}
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
