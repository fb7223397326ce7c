package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	agentcore "github.com/mohammad-safakhou/bookrec/internal/agent/core"
	"github.com/mohammad-safakhou/bookrec/internal/helpers"
	"github.com/mohammad-safakhou/bookrec/models"
)

// CredentialHeader carries the caller's planning service key.
const CredentialHeader = "X-API-Key"

// maxRawInError bounds the model output echoed back on planning failures.
const maxRawInError = 2000

type RecommendHandler struct {
	Orch       agentcore.Recommender
	RunTimeout time.Duration
	logger     *log.Logger
}

type recommendRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type recommendResponse struct {
	RunID       string                 `json:"run_id"`
	Query       string                 `json:"query"`
	Books       []models.BookCandidate `json:"books"`
	Plan        []models.SubTask       `json:"plan"`
	FailedTasks []int                  `json:"failed_tasks,omitempty"`
	Failures    map[int]string         `json:"failures,omitempty"`
	ElapsedMS   int64                  `json:"elapsed_ms"`
}

type planningErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
	Raw   string `json:"raw,omitempty"`
}

func (h *RecommendHandler) Register(g *echo.Group) {
	g.POST("/recommend", h.recommend)
}

func (h *RecommendHandler) recommend(c echo.Context) error {
	var req recommendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if req.K < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "k must not be negative")
	}
	credential := strings.TrimSpace(c.Request().Header.Get(CredentialHeader))
	if credential == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing "+CredentialHeader+" header")
	}

	ctx := c.Request().Context()
	if h.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.RunTimeout)
		defer cancel()
	}

	res, err := h.Orch.Recommend(ctx, req.Query, req.K, credential)
	if err != nil {
		return h.writeError(c, err)
	}
	books := res.Books
	if books == nil {
		books = []models.BookCandidate{}
	}
	return c.JSON(http.StatusOK, recommendResponse{
		RunID:       res.RunID,
		Query:       res.Query,
		Books:       books,
		Plan:        res.Plan,
		FailedTasks: res.FailedTasks,
		Failures:    res.Failures,
		ElapsedMS:   res.Elapsed.Milliseconds(),
	})
}

func (h *RecommendHandler) writeError(c echo.Context, err error) error {
	if errors.Is(err, agentcore.ErrEmptyQuery) {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	var pf *agentcore.PlanningFailure
	if errors.As(err, &pf) {
		stage := string(agentcore.StatePlanning)
		var runErr *agentcore.RunError
		if errors.As(err, &runErr) {
			stage = string(runErr.Stage)
		}
		if h.logger != nil {
			h.logger.Printf("planning failure: %v", err)
		}
		return c.JSON(http.StatusBadGateway, planningErrorResponse{
			Error: pf.Error(),
			Stage: stage,
			Raw:   helpers.Truncate(pf.Raw, maxRawInError),
		})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return echo.NewHTTPError(http.StatusGatewayTimeout, "recommendation timed out")
	}
	return err
}
