package migration

const (
	// PrimaryIndex is the index name that defines the key layout of the store
	PrimaryIndex = "primary"

	SchemaFormat = "kvtern:1.0.0"
)

type (
	// Schema is the document describing indexes and models the store
	// should shape reads and writes with
	Schema struct {
		Format  string           `yaml:"format" json:"format"`
		Version string           `yaml:"version" json:"version"`
		Indexes map[string]Index `yaml:"indexes" json:"indexes"`
		Models  map[string]Model `yaml:"models" json:"models"`
	}

	Index struct {
		Hash string `yaml:"hash" json:"hash"`
		Sort string `yaml:"sort,omitempty" json:"sort,omitempty"`
	}

	Model map[string]Field

	Field struct {
		Type     string `yaml:"type" json:"type"`
		Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
	}
)

// Primary returns the primary index and whether the schema declares one
func (s *Schema) Primary() (Index, bool) {
	if s == nil || s.Indexes == nil {
		return Index{}, false
	}

	idx, ok := s.Indexes[PrimaryIndex]
	return idx, ok && idx.Hash != ""
}

func (s *Schema) HasModel(name string) bool {
	if s == nil {
		return false
	}

	_, ok := s.Models[name]
	return ok
}

// Clone returns a deep copy so that resolved definitions never share
// a schema document with the catalog
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}

	c := &Schema{Format: s.Format, Version: s.Version}
	if s.Indexes != nil {
		c.Indexes = make(map[string]Index, len(s.Indexes))
		for k, v := range s.Indexes {
			c.Indexes[k] = v
		}
	}

	if s.Models != nil {
		c.Models = make(map[string]Model, len(s.Models))
		for name, model := range s.Models {
			fields := make(Model, len(model))
			for k, v := range model {
				fields[k] = v
			}
			c.Models[name] = fields
		}
	}

	return c
}
