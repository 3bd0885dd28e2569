package catalog

import (
	"fmt"

	"psyeval/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seed upserts the catalog into the reference tables. Reference data is
// read-only at runtime, so seeding at startup is the only writer and can
// safely re-run on every boot.
func Seed(db *gorm.DB, cat *Catalog, log *zap.Logger) error {
	for _, ct := range cat.Tests {
		test := models.Test{
			Codigo:    ct.Codigo,
			Nombre:    ct.Nombre,
			Slug:      ct.Slug,
			Requerida: ct.Requerida,
			Escalas:   ct.Escalas,
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "codigo"}},
			DoUpdates: clause.AssignmentColumns([]string{"nombre", "slug", "requerida", "escalas"}),
		}).Create(&test).Error
		if err != nil {
			return fmt.Errorf("failed to seed test %s: %w", ct.Codigo, err)
		}

		// The OnConflict path does not refresh the ID on older drivers;
		// re-read to be sure items attach to the surviving row.
		var stored models.Test
		if err := db.First(&stored, "codigo = ?", ct.Codigo).Error; err != nil {
			return fmt.Errorf("failed to re-read test %s: %w", ct.Codigo, err)
		}

		for _, ci := range ct.Items {
			item := ci.model(stored)
			err := db.Where(
				"prueba_id = ? AND orden = ?", stored.ID, item.Orden,
			).Assign(map[string]interface{}{
				"enunciado": item.Enunciado,
				"escala":    item.Escala,
				"tipo":      item.Tipo,
				"inverso":   item.Inverso,
				"max_raw":   item.MaxRaw,
				"opciones":  item.Opciones,
			}).FirstOrCreate(&models.TestItem{}).Error
			if err != nil {
				return fmt.Errorf("failed to seed item %d of %s: %w", item.Orden, ct.Codigo, err)
			}
		}

		for _, nb := range cat.Normativas {
			if nb.Prueba != ct.Codigo {
				continue
			}
			for _, row := range nb.Filas {
				entry := models.NormEntry{
					PruebaID:          stored.ID,
					Escala:            nb.Escala,
					Grupo:             nb.Grupo,
					Version:           nb.Version,
					PuntajeBruto:      row.Bruto,
					PuntajeConvertido: row.Convertido,
				}
				err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
				if err != nil {
					return fmt.Errorf("failed to seed normativa %s/%s: %w", nb.Prueba, nb.Escala, err)
				}
			}
		}

		log.Info("Seeded test catalog entry",
			zap.String("codigo", ct.Codigo),
			zap.Int("items", len(ct.Items)),
		)
	}
	return nil
}
