package report

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Audiences a report definition can target. Farmer reports are scoped to one farm.
const (
	AudienceAdmin  = "admin"
	AudienceFarmer = "farmer"
)

// Request filters a definition may accept.
const (
	FilterFrom      = "from"
	FilterTo        = "to"
	FilterFarmID    = "farm_id"
	FilterProductID = "product_id"
)

var knownFilters = map[string]bool{
	FilterFrom:      true,
	FilterTo:        true,
	FilterFarmID:    true,
	FilterProductID: true,
}

//go:embed definitions/*.yaml
var embeddedDefinitions embed.FS

// Definition describes one report the service can generate.
// Definitions are loaded at startup and fingerprinted so clients can detect changes.
type Definition struct {
	ID          string   `json:"id"`
	Audience    string   `json:"audience"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Filters     []string `json:"filters"`
	Fingerprint string   `json:"fingerprint"` // SHA-256 of the raw YAML file

	builder Builder
}

// Builder returns the aggregation pass behind the definition.
func (d Definition) Builder() Builder { return d.builder }

// Accepts reports whether the definition takes the given filter.
func (d Definition) Accepts(filter string) bool { return contains(d.Filters, filter) }

// rawDefinition is the on-disk YAML shape.
type rawDefinition struct {
	ID          string   `yaml:"id"`
	Audience    string   `yaml:"audience"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Filters     []string `yaml:"filters"`
}

// Catalog holds the loaded report definitions keyed by id.
type Catalog struct {
	defs map[string]Definition
}

// DefaultCatalog loads the definitions compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	sub, err := fs.Sub(embeddedDefinitions, "definitions")
	if err != nil {
		return nil, fmt.Errorf("embedded report definitions: %w", err)
	}
	return LoadCatalog(sub)
}

// LoadCatalogDir loads definitions from a directory on disk.
func LoadCatalogDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("report definitions dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("report definitions path %q is not a directory", dir)
	}
	return LoadCatalog(os.DirFS(dir))
}

// LoadCatalog reads every *.yaml / *.yml file at the root of fsys. Each file holds
// exactly one definition. Fails on malformed files, duplicate ids and ids with no builder.
func LoadCatalog(fsys fs.FS) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading report definitions: %w", err)
	}

	c := &Catalog{defs: make(map[string]Definition)}
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading definition file %s: %w", e.Name(), err)
		}

		var raw rawDefinition
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing definition file %s: %w", e.Name(), err)
		}
		if raw.ID == "" {
			continue // empty or comment-only file
		}

		def, err := raw.resolve()
		if err != nil {
			return nil, err
		}
		if _, exists := c.defs[def.ID]; exists {
			return nil, fmt.Errorf("report %q: duplicate definition (check multiple YAML files)", def.ID)
		}
		def.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))
		c.defs[def.ID] = def
	}
	if len(c.defs) == 0 {
		return nil, fmt.Errorf("no report definitions found")
	}
	return c, nil
}

func (r rawDefinition) resolve() (Definition, error) {
	b, ok := Lookup(r.ID)
	if !ok {
		return Definition{}, fmt.Errorf("report %q: no builder registered", r.ID)
	}

	audience := strings.ToLower(strings.TrimSpace(r.Audience))
	switch audience {
	case AudienceAdmin, AudienceFarmer:
	default:
		return Definition{}, fmt.Errorf("report %q: unsupported audience %q", r.ID, r.Audience)
	}
	if (audience == AudienceFarmer) != b.FarmScoped {
		return Definition{}, fmt.Errorf("report %q: audience %q does not match its builder", r.ID, audience)
	}

	filters := make([]string, 0, len(r.Filters))
	for _, f := range r.Filters {
		if !knownFilters[f] {
			return Definition{}, fmt.Errorf("report %q: unknown filter %q", r.ID, f)
		}
		filters = append(filters, f)
	}
	if b.FarmScoped && !contains(filters, FilterFarmID) {
		return Definition{}, fmt.Errorf("report %q: farmer reports must accept %s", r.ID, FilterFarmID)
	}

	title := r.Title
	if title == "" {
		title = r.ID
	}
	return Definition{
		ID:          r.ID,
		Audience:    audience,
		Title:       title,
		Description: r.Description,
		Filters:     filters,
		builder:     b,
	}, nil
}

// Get returns the definition with the given id.
func (c *Catalog) Get(id string) (Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// List returns all definitions sorted by id.
func (c *Catalog) List() []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
