package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
tests:
  - codigo: PAI
    nombre: Inventario PAI
    slug: pai
    requerida: true
    escalas: [PAI_ANS]
    items:
      - orden: 1
        enunciado: "Me pongo nervioso con facilidad."
        escala: PAI_ANS
        max_raw: 3
        opciones: { "Falso": 0, "Muy cierto": 3 }
  - codigo: MMPI
    nombre: Inventario MMPI
    slug: mmpi
    escalas: [MMPI_D]
    items: []
normativas:
  - prueba: PAI
    escala: PAI_ANS
    grupo: adulto
    version: "2020"
    filas:
      - { bruto: 0, convertido: 40 }
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesTestsAndNorms(t *testing.T) {
	cat, err := Load(writeTemp(t, sampleYAML))
	require.NoError(t, err)

	require.Len(t, cat.Tests, 2)
	assert.Equal(t, "PAI", cat.Tests[0].Codigo)
	assert.True(t, cat.Tests[0].Requerida)
	require.Len(t, cat.Tests[0].Items, 1)
	assert.Equal(t, 3, cat.Tests[0].Items[0].MaxRaw)
	assert.Equal(t, 3, cat.Tests[0].Items[0].Opciones["Muy cierto"])

	require.Len(t, cat.Normativas, 1)
	assert.Equal(t, "2020", cat.Normativas[0].Version)
}

func TestLoadRejectsMissingCodigo(t *testing.T) {
	_, err := Load(writeTemp(t, "tests:\n  - nombre: sin codigo\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestRequiredCodes(t *testing.T) {
	cat, err := Load(writeTemp(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"PAI"}, cat.RequiredCodes())
}
