package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/mohammad-safakhou/inquest/config"
	"github.com/mohammad-safakhou/inquest/internal/agent/core"
	agenttele "github.com/mohammad-safakhou/inquest/internal/agent/telemetry"
	"github.com/mohammad-safakhou/inquest/internal/rag"
	"github.com/mohammad-safakhou/inquest/internal/runtime"
	"github.com/mohammad-safakhou/inquest/internal/store"
	"github.com/mohammad-safakhou/inquest/provider/cache"
	openai_provider "github.com/mohammad-safakhou/inquest/provider/openai"
	"github.com/mohammad-safakhou/inquest/tools/web_fetch"
	"github.com/mohammad-safakhou/inquest/tools/web_search"
)

// Run starts the HTTP API. All dependencies are constructed here, once, and
// handed to handlers; nothing is lazily initialized.
func Run(addr string, cfgPath string) error {
	cfg := appconfig.LoadConfig(cfgPath)
	if addr == "" {
		addr = cfg.Server.Address
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrations skipped: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn, log.New(log.Writer(), "[STORE] ", log.LstdFlags))
	if err != nil {
		return err
	}

	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		return err
	}

	searcher := web_search.NewChain(cfg.Search, log.New(log.Writer(), "[SEARCH] ", log.LstdFlags))

	var corpus *rag.Corpus
	if cfg.Corpus.Enabled {
		corpus, err = rag.NewCorpus(cfg.Corpus, log.New(log.Writer(), "[CORPUS] ", log.LstdFlags))
		if err != nil {
			return err
		}
		if cfg.Corpus.Dir != "" {
			if n, err := corpus.IngestDir(cfg.Corpus.Dir); err != nil {
				baseLogger.Printf("corpus preload failed: %v", err)
			} else if n > 0 {
				baseLogger.Printf("corpus preloaded with %d chunks from %s", n, cfg.Corpus.Dir)
			}
		}
	}

	tele := agenttele.NewTelemetry(cfg.Telemetry)
	var retriever core.KnowledgeRetriever
	if corpus != nil {
		retriever = corpus
	}
	engine, err := core.NewEngine(llm, searcher, retriever, cfg.Corpus.TopK, tele, log.New(log.Writer(), "[ENGINE] ", log.LstdFlags))
	if err != nil {
		return err
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		secret = os.Getenv("INQUEST_JWT_SECRET")
	}
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}
	authMW := runtime.EchoAuthMiddleware([]byte(secret))

	api := e.Group("/api")

	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	rh := &ResearchHandler{
		Engine:     engine,
		Store:      st,
		NumResults: cfg.Search.NumResults,
		HasCorpus:  corpus != nil,
		Logger:     baseLogger,
	}
	rh.Register(api.Group("/research"), authMW)

	if corpus != nil {
		fetcher, err := web_fetch.NewWebFetcher(web_fetch.ChromedpFetcherType,
			time.Duration(cfg.Corpus.FetchTimeout), cfg.Corpus.FetchMaxChar)
		if err != nil {
			return err
		}
		ch := &CorpusHandler{Corpus: corpus, Fetcher: fetcher}
		ch.Register(api.Group("/corpus"), authMW)
	}

	baseLogger.Printf("listening on %s", addr)
	return e.Start(addr)
}

// buildLLM constructs the language model port, optionally decorated with the
// Redis completion cache.
func buildLLM(ctx context.Context, cfg *appconfig.Config) (core.LLMProvider, error) {
	client, err := openai_provider.NewClient(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if !cfg.LLM.Cache.Enabled {
		return client, nil
	}
	rdb, err := cache.Conn(ctx, cfg.Storage.Redis.Addr(), cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
	if err != nil {
		return nil, fmt.Errorf("llm cache enabled but redis unreachable: %w", err)
	}
	return cache.Wrap(client, rdb, cfg.LLM.Cache.TTL, log.New(log.Writer(), "[LLM-CACHE] ", log.LstdFlags)), nil
}
