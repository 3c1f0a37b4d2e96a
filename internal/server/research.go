package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/inquest/internal/agent/core"
	"github.com/mohammad-safakhou/inquest/internal/store"
)

// ResearchHandler runs the pipeline and serves persisted run records.
type ResearchHandler struct {
	Engine     *core.Engine
	Store      *store.Store
	NumResults int
	HasCorpus  bool
	Logger     *log.Logger
}

func (h *ResearchHandler) Register(g *echo.Group, authMW echo.MiddlewareFunc) {
	g.POST("", h.run)
	g.GET("", h.list)
	g.GET("/search", h.search)
	g.GET("/recent", h.recent)
	g.GET("/stats", h.stats)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update, authMW)
	g.DELETE("/:id", h.remove, authMW)
}

// run executes one pipeline run and persists the result best-effort. A
// persistence failure degrades to a warning; the computed answer is always
// returned.
func (h *ResearchHandler) run(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	opts := core.RunOptions{UseCorpus: h.HasCorpus, NumResults: h.NumResults}
	metadata := map[string]interface{}{}
	if req.UseRAG != nil {
		opts.UseCorpus = *req.UseRAG && h.HasCorpus
		metadata["use_rag"] = *req.UseRAG
	}
	if req.NumResults != nil && *req.NumResults > 0 {
		opts.NumResults = *req.NumResults
		metadata["num_results"] = *req.NumResults
	}

	state, err := h.Engine.Run(c.Request().Context(), req.Query, opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	resp := RunResponse{RunState: state}
	if h.Store != nil {
		id, err := h.Store.CreateResearch(c.Request().Context(), state.Query, state.Research, state.Critique, state.FinalAnswer, metadata)
		if err != nil {
			h.Logger.Printf("failed to persist run: %v", err)
			resp.Warning = "result computed but not persisted: " + err.Error()
		} else {
			resp.RecordID = id
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ResearchHandler) list(c echo.Context) error {
	limit := intQuery(c, "limit", 50)
	skip := intQuery(c, "skip", 0)
	records, err := h.Store.ListResearch(c.Request().Context(), limit, skip)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, emptyIfNil(records))
}

func (h *ResearchHandler) search(c echo.Context) error {
	text := c.QueryParam("q")
	if strings.TrimSpace(text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit := intQuery(c, "limit", 10)
	records, err := h.Store.SearchResearch(c.Request().Context(), text, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, emptyIfNil(records))
}

func (h *ResearchHandler) recent(c echo.Context) error {
	days := intQuery(c, "days", 7)
	records, err := h.Store.RecentResearch(c.Request().Context(), days)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, emptyIfNil(records))
}

func (h *ResearchHandler) stats(c echo.Context) error {
	stats, err := h.Store.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *ResearchHandler) get(c echo.Context) error {
	rec, err := h.Store.GetResearch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return recordError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *ResearchHandler) update(c echo.Context) error {
	var updates map[string]interface{}
	if err := c.Bind(&updates); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ok, err := h.Store.UpdateResearch(c.Request().Context(), c.Param("id"), updates)
	if err != nil {
		return recordError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	return c.JSON(http.StatusOK, map[string]bool{"updated": true})
}

func (h *ResearchHandler) remove(c echo.Context) error {
	ok, err := h.Store.DeleteResearch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return recordError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": true})
}

func recordError(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidID), errors.Is(err, store.ErrInvalidUpdate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func intQuery(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func emptyIfNil(records []store.ResearchRecord) []store.ResearchRecord {
	if records == nil {
		return []store.ResearchRecord{}
	}
	return records
}
