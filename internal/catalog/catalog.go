// Package catalog loads the published test-rate list. It is used to render
// the public rates page and to price lab items submitted without a price.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rates.yaml
var defaultRates []byte

// Test is a single priced test.
type Test struct {
	Name  string `yaml:"name" json:"name"`
	Price int64  `yaml:"price" json:"price"`
}

// Subcategory groups tests inside a lab.
type Subcategory struct {
	Name  string `yaml:"name" json:"name"`
	Tests []Test `yaml:"tests" json:"tests"`
}

// Lab is a top level laboratory.
type Lab struct {
	Name          string        `yaml:"name" json:"name"`
	Subcategories []Subcategory `yaml:"subcategories" json:"subcategories"`
}

// Catalog is the parsed rate list with a lookup index.
type Catalog struct {
	Labs  []Lab `yaml:"labs" json:"labs"`
	index map[string]int64
}

// Default returns the embedded rate list.
func Default() (*Catalog, error) {
	return Parse(defaultRates)
}

// Load reads a rate list from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML and validates prices.
func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c.index = make(map[string]int64)
	for _, lab := range c.Labs {
		for _, sub := range lab.Subcategories {
			for _, t := range sub.Tests {
				if t.Price < 0 {
					return nil, fmt.Errorf("catalog: negative price for %q", t.Name)
				}
				c.index[key(lab.Name, sub.Name, t.Name)] = t.Price
			}
		}
	}
	return &c, nil
}

func key(lab, sub, name string) string {
	return strings.ToLower(strings.TrimSpace(lab)) + "\x00" +
		strings.ToLower(strings.TrimSpace(sub)) + "\x00" +
		strings.ToLower(strings.TrimSpace(name))
}

// Price returns the listed price of a test. Matching ignores case.
func (c *Catalog) Price(lab, subcategory, name string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	p, ok := c.index[key(lab, subcategory, name)]
	return p, ok
}

// Len returns the number of priced tests.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.index)
}
