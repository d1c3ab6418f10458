package canonical

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategories []byte

// Category is what the inventory's category code says about a hotel.
type Category struct {
	Stars int      `yaml:"stars"`
	Tags  []string `yaml:"tags"`
}

// CategoryMap maps inventory category and segment codes to stars and tags.
type CategoryMap struct {
	Categories map[string]Category `yaml:"categories"`
	Segments   map[int]string      `yaml:"segments"`
}

// DefaultCategoryMap returns the map compiled into the binary.
func DefaultCategoryMap() *CategoryMap {
	cm, err := ParseCategoryMap(defaultCategories)
	if err != nil {
		panic(fmt.Sprintf("canonical: embedded category map: %v", err))
	}
	return cm
}

// LoadCategoryMap reads a YAML category map from path. An empty path yields
// the default map.
func LoadCategoryMap(path string) (*CategoryMap, error) {
	if path == "" {
		return DefaultCategoryMap(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("canonical: read category map: %w", err)
	}
	return ParseCategoryMap(b)
}

// ParseCategoryMap decodes a YAML category map.
func ParseCategoryMap(b []byte) (*CategoryMap, error) {
	var cm CategoryMap
	if err := yaml.Unmarshal(b, &cm); err != nil {
		return nil, fmt.Errorf("canonical: parse category map: %w", err)
	}
	normalized := make(map[string]Category, len(cm.Categories))
	for code, c := range cm.Categories {
		if c.Stars < 0 || c.Stars > 5 {
			return nil, fmt.Errorf("canonical: category %s: stars %d outside 0..5", code, c.Stars)
		}
		normalized[strings.ToUpper(code)] = c
	}
	cm.Categories = normalized
	return &cm, nil
}

// Stars derives a 0..5 rating from a category code such as "4EST": the
// leading digit when there is one, the mapped category otherwise.
func (cm *CategoryMap) Stars(code string) int {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code != "" && code[0] >= '0' && code[0] <= '9' {
		if n := int(code[0] - '0'); n <= 5 {
			return n
		}
		return 5
	}
	return cm.Categories[code].Stars
}

// Tags returns the de-duplicated tags of a category and its segments, in
// category-then-segment order. Unknown segments are ignored.
func (cm *CategoryMap) Tags(category string, segments []int) []string {
	var tags []string
	seen := map[string]bool{}
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		tags = append(tags, t)
	}
	for _, t := range cm.Categories[strings.ToUpper(strings.TrimSpace(category))].Tags {
		add(t)
	}
	for _, s := range segments {
		add(cm.Segments[s])
	}
	return tags
}
