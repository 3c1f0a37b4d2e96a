package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/inquest/internal/rag"
	"github.com/mohammad-safakhou/inquest/tools/web_fetch"
)

// CorpusHandler manages the knowledge corpus over HTTP.
type CorpusHandler struct {
	Corpus  *rag.Corpus
	Fetcher web_fetch.WebFetcher
}

func (h *CorpusHandler) Register(g *echo.Group, authMW echo.MiddlewareFunc) {
	g.GET("/stats", h.stats)
	g.POST("/text", h.ingestText, authMW)
	g.POST("/url", h.ingestURL, authMW)
}

func (h *CorpusHandler) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Corpus.Stats())
}

func (h *CorpusHandler) ingestText(c echo.Context) error {
	var req IngestTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	n, err := h.Corpus.AddDocument(req.Source, req.Text)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	source := req.Source
	if source == "" {
		source = "unknown"
	}
	return c.JSON(http.StatusCreated, IngestResponse{Source: source, Chunks: n})
}

func (h *CorpusHandler) ingestURL(c echo.Context) error {
	var req IngestURLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	n, err := h.Corpus.IngestURL(c.Request().Context(), h.Fetcher, req.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, IngestResponse{Source: req.URL, Chunks: n})
}
