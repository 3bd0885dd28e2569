package database

import (
	"fmt"

	"psyeval/internal/config"
	logging "psyeval/internal/logging"
	"psyeval/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens the Postgres connection and runs migrations. The handle is
// returned to the caller and injected into repositories from main; nothing
// in this package keeps package-level state.
func New(log *zap.Logger) (*gorm.DB, error) {
	dbConf := config.Conf.Database
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, dbConf.User, dbConf.Password, dbConf.DBName, dbConf.Port)

	gormLogger := logging.NewGormZapLogger(log, logger.Warn)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		// Unique violations must surface as gorm.ErrDuplicatedKey so the
		// insert-or-return paths can recover from them.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connection established successfully.")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Database migrations completed successfully.")
	return db, nil
}

// Migrate creates tables, columns and foreign keys via GORM's AutoMigrate,
// then the custom indexes AutoMigrate will not create. Shared with the test
// suite, which runs it against an in-memory SQLite database.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Patient{},
		&models.Test{},
		&models.TestItem{},
		&models.NormEntry{},
		&models.Case{},
		&models.CaseTest{},
		&models.Attempt{},
		&models.Response{},
		&models.Score{},
		&models.Profile{},
		&models.Signature{},
	)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// At most one active attempt per (caso, prueba): the partial unique
	// index makes the database the arbiter of the start() race. Valid on
	// both Postgres and SQLite.
	activeAttempts := `CREATE UNIQUE INDEX IF NOT EXISTS ux_intentos_activos
		ON intentos_prueba (caso_id, prueba_id) WHERE terminado_en IS NULL;`
	if err := db.Exec(activeAttempts).Error; err != nil {
		return fmt.Errorf("failed to create active-attempt index: %w", err)
	}
	return nil
}
