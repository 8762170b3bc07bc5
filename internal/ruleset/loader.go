package ruleset

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

// Parse decodes one ruleset document and validates it. name is used in errors.
func Parse(name string, data []byte) (*Ruleset, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var y yamlRuleset
	if err := dec.Decode(&y); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w: empty document", name, domain.ErrInvalidRuleset)
		}
		return nil, fmt.Errorf("%s: %w: %v", name, domain.ErrInvalidRuleset, err)
	}
	def, err := mapDefinition(name, y)
	if err != nil {
		return nil, err
	}
	rs, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return rs, nil
}

// LoadFile reads and validates a ruleset from disk.
func LoadFile(filename string) (*Ruleset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset %s: %w", filename, err)
	}
	return Parse(filename, data)
}

// Registry holds exactly one Ruleset per tax year.
type Registry struct {
	byYear map[int]*Ruleset
}

// NewRegistry indexes rulesets by year; two rulesets for one year is an error.
func NewRegistry(rulesets ...*Ruleset) (*Registry, error) {
	r := &Registry{byYear: make(map[int]*Ruleset, len(rulesets))}
	for _, rs := range rulesets {
		if rs == nil {
			continue
		}
		if existing, ok := r.byYear[rs.TaxYear()]; ok {
			return nil, fmt.Errorf("%w: tax year %d defined twice (%s and %s)",
				domain.ErrInvalidRuleset, rs.TaxYear(), existing.VersionID(), rs.VersionID())
		}
		r.byYear[rs.TaxYear()] = rs
	}
	return r, nil
}

// ForYear returns the Ruleset for year.
func (r *Registry) ForYear(year int) (*Ruleset, error) {
	if rs, ok := r.byYear[year]; ok {
		return rs, nil
	}
	return nil, fmt.Errorf("%w: no ruleset for tax year %d", domain.ErrRulesetNotFound, year)
}

// Years lists the supported tax years in ascending order.
func (r *Registry) Years() []int {
	years := make([]int, 0, len(r.byYear))
	for y := range r.byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Latest returns the Ruleset with the greatest tax year.
func (r *Registry) Latest() (*Ruleset, error) {
	years := r.Years()
	if len(years) == 0 {
		return nil, fmt.Errorf("%w: registry is empty", domain.ErrRulesetNotFound)
	}
	return r.byYear[years[len(years)-1]], nil
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return loadFS(embedded, "data")
})

// Default returns the registry of rulesets compiled into the binary. It is
// built once and safe to share.
func Default() (*Registry, error) {
	return loadDefault()
}

func loadFS(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list rulesets: %w", err)
	}
	var rulesets []*Ruleset
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		name := path.Join(dir, e.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read ruleset %s: %w", name, err)
		}
		rs, err := Parse(name, data)
		if err != nil {
			return nil, err
		}
		rulesets = append(rulesets, rs)
	}
	return NewRegistry(rulesets...)
}
