package router

import (
	"net/http"
	"time"

	"psyeval/internal/config"
	"psyeval/internal/handlers"
	"psyeval/internal/models"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// Deps carries everything the route table mounts.
type Deps struct {
	Auth       *handlers.AuthHandler
	Cases      *handlers.CaseHandler
	Attempts   *handlers.AttemptHandler
	Profiles   *handlers.ProfileHandler
	Signatures *handlers.SignatureHandler
	Catalog    *handlers.CatalogHandler
	Charts     *handlers.ChartsHandler
	Events     *handlers.EventsHandler
	Health     *handlers.HealthHandler
	UserLoader gin.HandlerFunc
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try again later"})
}

// Setup builds the gin engine: recovery, request logging, cookie sessions,
// secure headers, CSRF, user loading, then the API route tree.
func Setup(log *zap.Logger, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	store := cookie.NewStore([]byte(config.Conf.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // behind TLS termination in production
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7,
	})
	router.Use(sessions.Sessions("psyeval_session", store))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
	})

	router.Use(CSRFProtection())
	router.Use(deps.UserLoader)

	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 5,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: rateErrorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/health", deps.Health.Health)

	api := router.Group("/api")
	{
		api.GET("/csrf", CSRFToken)
		api.POST("/login", limiter, deps.Auth.Login)
		api.POST("/logout", deps.Auth.Logout)

		authorized := api.Group("/")
		authorized.Use(AuthRequired())
		{
			authorized.GET("/me", deps.Auth.Me)
			authorized.GET("/operadores", deps.Auth.Operators)

			authorized.GET("/pruebas", deps.Catalog.Tests)
			authorized.GET("/pruebas/:key", deps.Catalog.Test)

			authorized.GET("/casos", deps.Cases.List)
			authorized.GET("/casos/:id", deps.Cases.Get)
			authorized.GET("/casos/:id/puntajes", deps.Cases.Scores)
			authorized.GET("/casos/:id/perfil", deps.Profiles.Latest)
			authorized.GET("/casos/:id/perfil/listo", deps.Profiles.Ready)
			authorized.GET("/casos/:id/perfil/features", deps.Profiles.Features)
			authorized.POST("/casos/:id/perfil", deps.Profiles.Generate)
			authorized.POST("/casos/:id/perfil/vista", deps.Profiles.View)

			authorized.POST("/intentos", deps.Attempts.Start)
			authorized.GET("/intentos/:id", deps.Attempts.Get)
			authorized.POST("/intentos/:id/respuestas", deps.Attempts.Answer)
			authorized.POST("/intentos/:id/finalizar", deps.Attempts.Finish)
			authorized.POST("/intentos/:id/interrumpir", deps.Attempts.Interrupt)
			authorized.GET("/intentos/:id/puntajes", deps.Attempts.Scores)
			authorized.POST("/intentos/:id/firmas", deps.Signatures.Sign)
			authorized.GET("/intentos/:id/firmas", deps.Signatures.List)

			authorized.GET("/eventos", deps.Events.Stream)

			charts := authorized.Group("/graficos")
			{
				charts.GET("/perfiles", deps.Charts.ProfilesPie)
				charts.GET("/evaluaciones", deps.Charts.EvaluationsTimeline)
				charts.GET("/casos", deps.Charts.CasesBar)
			}

			admin := authorized.Group("/")
			admin.Use(RequireRoles(models.RolAdministrador, models.RolEncargado))
			{
				admin.POST("/usuarios", limiter, deps.Auth.Register)
				admin.POST("/casos", deps.Cases.Create)
				admin.PUT("/casos/:id", deps.Cases.Update)
				admin.POST("/casos/:id/cancelar", deps.Cases.Cancel)
				admin.DELETE("/casos/:id", deps.Cases.Delete)
			}
		}
	}

	return router
}
