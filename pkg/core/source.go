package core

// Source is one entry of the source registry: a logical source name mapped
// to a physical schema and its tables.
type Source struct {
	Schema string            `yaml:"schema"`
	Tables map[string]string `yaml:"tables"` // logical table -> physical table; empty value means same name
}

// SourceRegistry maps logical source names to their physical location.
type SourceRegistry map[string]Source

// Lookup resolves a (source, table) pair. ok is false only when the source
// is not registered. Tables maps logical names to physical ones; a table
// missing from it keeps its own name.
func (r SourceRegistry) Lookup(source, table string) (schema, physical string, ok bool) {
	src, found := r[source]
	if !found {
		return "", "", false
	}
	if phys := src.Tables[table]; phys != "" {
		return src.Schema, phys, true
	}
	return src.Schema, table, true
}

// AssetKind describes how an asset is exposed to templates.
type AssetKind string

// AssetKind values.
const (
	// AssetTabular assets are loaded into a temporary relation.
	AssetTabular AssetKind = "tabular"
	// AssetText assets expand to their content.
	AssetText AssetKind = "text"
	// AssetOpaque assets expand to their location.
	AssetOpaque AssetKind = "opaque"
)

// Asset is a named external file that models may reference.
type Asset struct {
	Name     string    `yaml:"-"`
	Kind     AssetKind `yaml:"kind"`
	Location string    `yaml:"location"`
}
