package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/config"
	"github.com/ehr/fhirbridge/internal/domain/allergy"
	"github.com/ehr/fhirbridge/internal/domain/concept"
	"github.com/ehr/fhirbridge/internal/domain/encounter"
	"github.com/ehr/fhirbridge/internal/domain/medication"
	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/domain/relatedperson"
	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/middleware"
	"github.com/ehr/fhirbridge/internal/platform/property"
)

// propertyBackend is a property store the health endpoint can ping.
type propertyBackend interface {
	property.Store
	Ping(ctx context.Context) error
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := logger.WithContext(context.Background())

	pool, err := db.NewPool(ctx, db.PoolOptions{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()

	props, err := newPropertyStore(cfg, pool)
	if err != nil {
		return err
	}

	e := newServer(cfg, logger, pool, props)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("property_backend", cfg.PropertyBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newPropertyStore(cfg *config.Config, pool *pgxpool.Pool) (propertyBackend, error) {
	if cfg.PropertyBackend == config.PropertyBackendRedis {
		client, err := property.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return property.NewRedisStore(client), nil
	}
	return property.NewPGStore(pool), nil
}

// newServer builds the echo instance with the middleware chain, the health
// endpoint and every FHIR resource route.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, props propertyBackend) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = fhir.JSONSerializer{Narratives: fhir.NewNarrativeGenerator()}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", db.HealthHandler(pool, map[string]db.Check{"properties": props.Ping}))

	fhirGroup := e.Group("/fhir")
	fhirGroup.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	fhirGroup.Use(db.ConnMiddleware(pool))
	registerResources(fhirGroup, pool, props)
	return e
}

type routeRegistrar interface {
	RegisterRoutes(fhirGroup *echo.Group)
}

func registerResources(fhirGroup *echo.Group, pool *pgxpool.Pool, props property.Store) {
	concepts := concept.NewRepoPG(pool)
	persons := person.NewRepoPG(pool)

	handlers := []routeRegistrar{
		person.NewHandler(person.NewService(persons)),
		relatedperson.NewHandler(relatedperson.NewService(relatedperson.NewRepoPG(pool, persons), persons)),
		allergy.NewHandler(allergy.NewService(allergy.NewRepoPG(pool, concepts, persons), concepts, persons, props)),
		encounter.NewHandler(encounter.NewService(encounter.NewRepoPG(pool, persons), persons)),
		medication.NewHandler(medication.NewService(medication.NewRepoPG(pool, concepts), concepts)),
	}
	for _, h := range handlers {
		h.RegisterRoutes(fhirGroup)
	}
}
