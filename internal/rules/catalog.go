package rules

// CatalogEntry describes one selectable rule set
type CatalogEntry struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	RuleCount   int    `json:"ruleCount"`
}

// Catalog is the immutable name to display-name lookup shared by the
// validation and presentation layers. Build it once and pass it down.
type Catalog struct {
	entries []CatalogEntry
	index   map[string]int
}

// NewCatalog creates a catalog; later entries with a repeated name are ignored
func NewCatalog(entries []CatalogEntry) *Catalog {
	c := &Catalog{
		entries: make([]CatalogEntry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if _, ok := c.index[e.Name]; ok {
			continue
		}
		c.index[e.Name] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c
}

// DisplayName returns the human label for name, or name itself when unknown
func (c *Catalog) DisplayName(name string) string {
	if i, ok := c.index[name]; ok && c.entries[i].DisplayName != "" {
		return c.entries[i].DisplayName
	}
	return name
}

// Has reports whether name is in the catalog
func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Entries returns a copy of the entries in catalog order
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns the rule set names in catalog order
func (c *Catalog) Names() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Name
	}
	return out
}
