package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"psyeval/internal/database"
	"psyeval/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedCaseAndTest(t *testing.T, db *gorm.DB) (uuid.UUID, uuid.UUID) {
	t.Helper()
	test := &models.Test{Codigo: "PAI", Nombre: "PAI", Slug: "pai"}
	require.NoError(t, db.Create(test).Error)
	c := &models.Case{Motivacion: "test"}
	require.NoError(t, db.Create(c).Error)
	return c.ID, test.ID
}

// The partial unique index admits exactly one open attempt per (caso,
// prueba) while closed attempts accumulate freely.
func TestInsertOrReturnActiveConvergesOnOneRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepo(db)
	ctx := context.Background()
	casoID, pruebaID := seedCaseAndTest(t, db)

	first, err := repo.InsertOrReturnActive(ctx, casoID, pruebaID)
	require.NoError(t, err)
	second, err := repo.InsertOrReturnActive(ctx, casoID, pruebaID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	closed, err := repo.Finish(ctx, first.ID, time.Now().UTC(), nil)
	require.NoError(t, err)
	assert.True(t, closed)

	third, err := repo.InsertOrReturnActive(ctx, casoID, pruebaID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	var count int64
	require.NoError(t, db.Model(&models.Attempt{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestFinishSecondCallIsNoOp(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepo(db)
	ctx := context.Background()
	casoID, pruebaID := seedCaseAndTest(t, db)

	attempt, err := repo.InsertOrReturnActive(ctx, casoID, pruebaID)
	require.NoError(t, err)

	firstEnd := time.Now().UTC()
	closed, err := repo.Finish(ctx, attempt.ID, firstEnd, nil)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.Finish(ctx, attempt.ID, firstEnd.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.False(t, closed)

	stored, err := repo.ByID(ctx, attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TerminadoEn)
	assert.WithinDuration(t, firstEnd, *stored.TerminadoEn, time.Second)
}

func TestUpsertResponseKeepsOneRowPerItem(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepo(db)
	ctx := context.Background()
	casoID, pruebaID := seedCaseAndTest(t, db)

	attempt, err := repo.InsertOrReturnActive(ctx, casoID, pruebaID)
	require.NoError(t, err)
	itemID := uuid.New()

	for i, raw := range []float64{0, 2} {
		resp := &models.Response{
			IntentoID: attempt.ID,
			ItemID:    itemID,
			CasoID:    casoID,
			PruebaID:  pruebaID,
			Valor:     map[string]interface{}{"label": fmt.Sprintf("opt-%d", i), "raw": raw},
		}
		require.NoError(t, repo.UpsertResponse(ctx, resp))
	}

	resps, err := repo.Responses(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, resps, 1)
	raw, ok := resps[0].RawValue()
	require.True(t, ok)
	assert.Equal(t, float64(2), raw)
}

func TestProfileInsertOrExisting(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepo(db)
	ctx := context.Background()
	casoID, _ := seedCaseAndTest(t, db)

	first := &models.Profile{CasoID: casoID, ModelVersion: "v1", PerfilClinico: "ansioso", GeneratedBy: uuid.New()}
	stored, created, err := repo.InsertOrExisting(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &models.Profile{CasoID: casoID, ModelVersion: "v1", PerfilClinico: "otro", GeneratedBy: uuid.New()}
	existing, created, err := repo.InsertOrExisting(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, existing.ID)
	assert.Equal(t, "ansioso", existing.PerfilClinico)

	// A newer model version inserts alongside, preserving history.
	v2 := &models.Profile{CasoID: casoID, ModelVersion: "v2", PerfilClinico: "depresivo", GeneratedBy: uuid.New()}
	_, created, err = repo.InsertOrExisting(ctx, v2)
	require.NoError(t, err)
	assert.True(t, created)

	var count int64
	require.NoError(t, db.Model(&models.Profile{}).Where("caso_id = ?", casoID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestNormLookupMissingRowIsNil(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogRepo(db)
	ctx := context.Background()
	_, pruebaID := seedCaseAndTest(t, db)

	require.NoError(t, db.Create(&models.NormEntry{
		PruebaID: pruebaID, Escala: "PAI_ANS", Grupo: "adulto",
		PuntajeBruto: 2, Version: "2020", PuntajeConvertido: 50,
	}).Error)

	conv, err := repo.NormLookup(ctx, pruebaID, "PAI_ANS", "adulto", 2, "2020")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, 50, *conv)

	missing, err := repo.NormLookup(ctx, pruebaID, "PAI_ANS", "adulto", 99, "2020")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSignatureInsertIdempotent(t *testing.T) {
	db := newTestDB(t)
	attempts := NewAttemptRepo(db)
	repo := NewSignatureRepo(db)
	ctx := context.Background()
	casoID, pruebaID := seedCaseAndTest(t, db)

	attempt, err := attempts.InsertOrReturnActive(ctx, casoID, pruebaID)
	require.NoError(t, err)

	first, err := repo.InsertIdempotent(ctx, &models.Signature{
		IntentoID: attempt.ID, FirmadoPor: models.SignerPaciente, FirmaMime: "image/png",
	})
	require.NoError(t, err)

	second, err := repo.InsertIdempotent(ctx, &models.Signature{
		IntentoID: attempt.ID, FirmadoPor: models.SignerPaciente, FirmaMime: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	sigs, err := repo.ForAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}
