package catalog

import (
	"fmt"
	"os"

	"psyeval/internal/models"

	"gopkg.in/yaml.v3"
)

// CatalogItem matches one question in the YAML battery file.
type CatalogItem struct {
	Orden     int            `yaml:"orden"`
	Enunciado string         `yaml:"enunciado"`
	Escala    string         `yaml:"escala"`
	Tipo      string         `yaml:"tipo,omitempty"`
	Inverso   bool           `yaml:"inverso,omitempty"`
	MaxRaw    int            `yaml:"max_raw"`
	Opciones  map[string]int `yaml:"opciones"`
}

// CatalogTest matches one instrument in the YAML battery file.
type CatalogTest struct {
	Codigo    string        `yaml:"codigo"`
	Nombre    string        `yaml:"nombre"`
	Slug      string        `yaml:"slug"`
	Requerida bool          `yaml:"requerida"`
	Escalas   []string      `yaml:"escalas"`
	Items     []CatalogItem `yaml:"items"`
}

// NormRow is one raw-to-converted conversion row.
type NormRow struct {
	Bruto      int `yaml:"bruto"`
	Convertido int `yaml:"convertido"`
}

// NormBlock groups conversion rows for one (prueba, escala, grupo, version).
type NormBlock struct {
	Prueba  string    `yaml:"prueba"`
	Escala  string    `yaml:"escala"`
	Grupo   string    `yaml:"grupo"`
	Version string    `yaml:"version"`
	Filas   []NormRow `yaml:"filas"`
}

// Catalog holds the full test battery and normative tables.
type Catalog struct {
	Tests      []CatalogTest `yaml:"tests"`
	Normativas []NormBlock   `yaml:"normativas"`
}

// Load reads and parses the catalog YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog YAML: %w", err)
	}

	for _, t := range cat.Tests {
		if t.Codigo == "" {
			return nil, fmt.Errorf("catalog test without codigo")
		}
	}
	return &cat, nil
}

// RequiredCodes returns the codes of the tests that must all have a finished
// attempt before a clinical profile can be generated.
func (c *Catalog) RequiredCodes() []string {
	var out []string
	for _, t := range c.Tests {
		if t.Requerida {
			out = append(out, t.Codigo)
		}
	}
	return out
}

// Item converts a YAML item to its model, attached to the given test.
func (i CatalogItem) model(t models.Test) models.TestItem {
	opts := make(map[string]interface{}, len(i.Opciones))
	for label, raw := range i.Opciones {
		opts[label] = raw
	}
	tipo := i.Tipo
	if tipo == "" {
		tipo = "opcion"
	}
	return models.TestItem{
		PruebaID:  t.ID,
		Orden:     i.Orden,
		Enunciado: i.Enunciado,
		Escala:    i.Escala,
		Tipo:      tipo,
		Inverso:   i.Inverso,
		MaxRaw:    i.MaxRaw,
		Opciones:  opts,
	}
}
