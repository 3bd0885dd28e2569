package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"psyeval/internal/catalog"
	"psyeval/internal/database"
	"psyeval/internal/events"
	"psyeval/internal/inference"
	"psyeval/internal/models"
	"psyeval/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testEnv wires the full service stack over an in-memory database, a
// memory bus, an httptest inference server and an in-memory object store.
type testEnv struct {
	db         *gorm.DB
	bus        *events.MemoryBus
	store      *memStore
	inferSrv   *httptest.Server
	inferResp  *inference.InferResponse
	inferCalls int

	users      *repository.UserRepo
	catalog    *repository.CatalogRepo
	caseRepo   *repository.CaseRepo
	attempts   *repository.AttemptRepo
	scores     *repository.ScoreRepo
	profiles   *repository.ProfileRepo
	signatures *repository.SignatureRepo

	caseSvc    *CaseService
	attemptSvc *AttemptService
	scoringSvc *ScoringService
	profileSvc *ProfileService
	signSvc    *SignatureService

	admin    *models.User
	operator *models.User
}

var testCatalogYAML = `
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
      - orden: 2
        enunciado: "Casi siempre estoy tranquilo."
        escala: PAI_ANS
        inverso: true
        max_raw: 3
        opciones: { "Falso": 0, "Muy cierto": 3 }
  - codigo: MCMI
    nombre: Inventario MCMI
    slug: mcmi
    requerida: true
    escalas: [MCMI_DEP]
    items:
      - orden: 1
        enunciado: "Me cuesta tomar decisiones."
        escala: MCMI_DEP
        max_raw: 1
        opciones: { "Falso": 0, "Verdadero": 1 }
  - codigo: MMPI
    nombre: Inventario MMPI
    slug: mmpi
    requerida: false
    escalas: [MMPI_D]
    items:
      - orden: 1
        enunciado: "Me despierto descansado."
        escala: MMPI_D
        inverso: true
        max_raw: 1
        opciones: { "Falso": 0, "Verdadero": 1 }
normativas:
  - prueba: PAI
    escala: PAI_ANS
    grupo: adulto
    version: "2020"
    filas:
      - { bruto: 0, convertido: 40 }
      - { bruto: 1, convertido: 45 }
      - { bruto: 2, convertido: 50 }
      - { bruto: 3, convertido: 55 }
  - prueba: MCMI
    escala: MCMI_DEP
    grupo: adulto
    version: "2020"
    filas:
      - { bruto: 0, convertido: 35 }
      - { bruto: 1, convertido: 75 }
`

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()

	// One shared in-memory database per test; the connection pool would
	// otherwise hand each connection its own empty schema.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	var cat catalog.Catalog
	require.NoError(t, yaml.Unmarshal([]byte(testCatalogYAML), &cat))
	require.NoError(t, catalog.Seed(db, &cat, log))

	env := &testEnv{
		db:    db,
		bus:   events.NewMemoryBus(),
		store: newMemStore(),
		inferResp: &inference.InferResponse{
			ModelVersion:  "v1",
			PerfilClinico: "ansioso",
			Probabilidad:  0.87,
			Explicacion: &inference.Explicacion{
				Metodo:        "shap",
				ClaseObjetivo: "ansioso",
				TopFeatures: []inference.TopFeature{
					{Feature: "PAI_ANS", Valor: 55, Aporte: 0.6, Sentido: "+"},
					{Feature: "MCMI_DEP", Valor: 35, Aporte: -0.3, Sentido: "-"},
					{Feature: "has_PAI", Valor: 1, Aporte: 0.1, Sentido: "+"},
				},
			},
		},
	}
	env.inferSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inferir" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		env.inferCalls++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(env.inferResp)
	}))
	t.Cleanup(env.inferSrv.Close)

	env.users = repository.NewUserRepo(db)
	env.catalog = repository.NewCatalogRepo(db)
	env.caseRepo = repository.NewCaseRepo(db)
	env.attempts = repository.NewAttemptRepo(db)
	env.scores = repository.NewScoreRepo(db)
	env.profiles = repository.NewProfileRepo(db)
	env.signatures = repository.NewSignatureRepo(db)

	inferClient := inference.NewClient(env.inferSrv.URL, 5*time.Second, 5, log)
	notifier := NewNotifier(log)
	env.caseSvc = NewCaseService(log, env.caseRepo, env.users, env.bus, notifier)
	env.scoringSvc = NewScoringService(log, env.attempts, env.scores, env.catalog, env.caseRepo, env.users, "2020")
	env.attemptSvc = NewAttemptService(log, env.attempts, env.caseRepo, env.catalog, env.scoringSvc, env.caseSvc, env.bus)
	env.profileSvc = NewProfileService(log, env.profiles, env.attempts, env.scores, env.catalog, inferClient, env.bus)
	env.signSvc = NewSignatureService(log, env.signatures, env.attempts, env.caseRepo, env.store, env.bus, 40)

	env.admin = env.mustUser(t, "admin@clinica.test", models.RolAdministrador)
	env.operator = env.mustUser(t, "operador@clinica.test", models.RolOperador)
	return env
}

func (e *testEnv) mustUser(t *testing.T, email string, rol models.Rol) *models.User {
	t.Helper()
	u := &models.User{Nombre: email, Email: email, Rol: rol}
	require.NoError(t, u.SetPassword("S3cure!pass"))
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) mustTest(t *testing.T, codigo string) *models.Test {
	t.Helper()
	test, err := e.catalog.TestByCodigo(context.Background(), codigo)
	require.NoError(t, err)
	return test
}

// mustCase creates a case assigned to the operator carrying the given tests.
func (e *testEnv) mustCase(t *testing.T, codigos ...string) *models.Case {
	t.Helper()
	var testIDs []uuid.UUID
	for _, codigo := range codigos {
		testIDs = append(testIDs, e.mustTest(t, codigo).ID)
	}
	opID := e.operator.ID
	c, err := e.caseSvc.Create(context.Background(), e.admin, CreateCaseInput{
		AsignadoA:  &opID,
		Motivacion: "evaluación inicial",
		TestIDs:    testIDs,
	})
	require.NoError(t, err)
	return c
}

// answerAll answers every item of the attempt's test with the given label.
func (e *testEnv) answerAll(t *testing.T, intentoID, pruebaID uuid.UUID, label string, raw float64) {
	t.Helper()
	items, err := e.catalog.ItemsByTest(context.Background(), pruebaID)
	require.NoError(t, err)
	for _, item := range items {
		_, err := e.attemptSvc.RecordAnswer(context.Background(), e.operator, intentoID, AnswerInput{
			ItemID: item.ID,
			Label:  label,
			Raw:    raw,
		})
		require.NoError(t, err)
	}
}

// finishTest runs start → answer → finish for one test of the case.
func (e *testEnv) finishTest(t *testing.T, casoID uuid.UUID, codigo string, raw float64) *models.Attempt {
	t.Helper()
	test := e.mustTest(t, codigo)
	attempt, err := e.attemptSvc.Start(context.Background(), e.operator, casoID, test.ID)
	require.NoError(t, err)
	e.answerAll(t, attempt.ID, test.ID, fmt.Sprintf("raw %v", raw), raw)
	finished, err := e.attemptSvc.Finish(context.Background(), e.operator, attempt.ID)
	require.NoError(t, err)
	return finished
}
