// Interaction HTTP handlers.
//
// This file exposes REST endpoints for interaction resources:
//   - POST   /interactions        (submit a turn for evaluation)
//   - GET    /interactions        (list, paginated, ETag support)
//   - GET    /interactions/{id}   (fetch one)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omniguard/go-moderation-backend/internal/domain"
	"github.com/omniguard/go-moderation-backend/internal/http/middleware"
	"github.com/omniguard/go-moderation-backend/internal/lifecycle"
	"github.com/omniguard/go-moderation-backend/internal/repo"
	"github.com/omniguard/go-moderation-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ModerationService defines the interaction lifecycle operations consumed by
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ModerationService interface {
	// SubmitTurn evaluates and persists a new interaction. replayed is true
	// when an idempotency key matched a previous submission.
	SubmitTurn(ctx context.Context, in services.SubmitTurnInput) (rec *domain.Interaction, replayed bool, err error)
	// Get returns a single interaction by id.
	Get(ctx context.Context, id string) (*domain.Interaction, error)
	// ListPage returns a page of interactions and the total count.
	ListPage(ctx context.Context, contributorID string, page, pageSize int) ([]domain.Interaction, int64, error)
	// PendingReviews returns the queue of interactions awaiting review.
	PendingReviews(ctx context.Context, page, pageSize int) ([]domain.Interaction, error)
	// SubmitReview resolves a parked interaction with a reviewer decision.
	SubmitReview(ctx context.Context, id string, d lifecycle.Decision) (*domain.Interaction, error)
	// Cancel administratively resolves a parked interaction.
	Cancel(ctx context.Context, id, canceller string, action domain.Action) (*domain.Interaction, error)
}

// StatsService defines dataset reporting operations.
type StatsService interface {
	// Overview returns aggregate dataset statistics.
	Overview(ctx context.Context) (*repo.DatasetStats, error)
	// ExportJSONL streams terminally verified interactions as JSON lines.
	ExportJSONL(ctx context.Context, w io.Writer) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for interactions, reviews, and stats.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	modSvc   ModerationService
	statsSvc StatsService

	// db powers the cheap ETag pre-check on list endpoints.
	db *gorm.DB
}

// New constructs and returns a Handlers instance bound to the given services.
func New(modSvc ModerationService, statsSvc StatsService, db *gorm.DB) *Handlers {
	return &Handlers{modSvc: modSvc, statsSvc: statsSvc, db: db}
}

// contributorID extracts the contributor identity from Gin context (set by
// upstream middleware). If absent, it falls back to the "X-Contributor-ID"
// header, and finally to "anonymous". It never touches c.Request if it's nil.
func contributorID(c *gin.Context) string {
	if v, ok := c.Get("contributorID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Contributor-ID")); h != "" {
			return h
		}
	}
	return "anonymous"
}

//
// DTOs
//

// SubmitInteractionRequest is the JSON payload for submitting a turn.
type SubmitInteractionRequest struct {
	// Instructions is the system/developer prompt segment of the turn.
	Instructions string `json:"instructions" example:"You are a helpful assistant."`
	// Input is the user message segment of the turn.
	Input string `json:"input" example:"What is the capital of France?"`
	// Output is the assistant reply segment of the turn, when present.
	Output string `json:"output" example:"Paris."`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListInteractionsResponse wraps a page of interactions and pagination
// information.
type ListInteractionsResponse struct {
	Interactions []domain.Interaction `json:"interactions"`
	Pagination   Pagination           `json:"pagination"`
}

//
// Helpers
//

// atoiDefault parses a query parameter, falling back to def when the value
// is empty or not an integer.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = atoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = atoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// failService maps a service-layer error onto the API error taxonomy.
// fallbackCode is used for unrecognized errors, which surface as 500s.
func failService(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrEmptyInput),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidDecision):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrInteractionNotFound),
		errors.Is(err, services.ErrContributorNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		fail(c, http.StatusConflict, ErrCodeInvalidState, err.Error())
	case errors.Is(err, services.ErrStoreUnavailable),
		errors.Is(err, services.ErrRuleSetUnavailable):
		c.Header("Retry-After", "1")
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

//
// Handlers
//

// SubmitInteraction godoc
// @ID          submitInteraction
// @Summary     Submit a conversation turn for moderation
// @Description Evaluates the turn against the active rule set and returns the resulting interaction, advanced as far as policy allows. Honors Idempotency-Key: retries replay the original interaction with HTTP 200.
// @Tags        Interactions
// @Accept      json
// @Produce     json
//
// @Param       X-Contributor-ID  header  string  false "Contributor ID"  example(contrib123)
// @Param       Idempotency-Key   header  string  false "Safe-retry key"
// @Param       body              body    handlers.SubmitInteractionRequest  true  "Turn payload"
//
// @Success     201  {object}  domain.Interaction
// @Success     200  {object}  domain.Interaction "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /interactions [post]
func (h *Handlers) SubmitInteraction(c *gin.Context) {
	var req SubmitInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	rec, replayed, err := h.modSvc.SubmitTurn(c.Request.Context(), services.SubmitTurnInput{
		ContributorID:  contributorID(c),
		IdempotencyKey: key,
		Turn: domain.Turn{
			Instructions: req.Instructions,
			Input:        req.Input,
			Output:       req.Output,
		},
	})
	if err != nil {
		failService(c, err, ErrCodeSubmitFailed)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	ok(c, status, rec)
}

// GetInteraction godoc
// @ID          getInteraction
// @Summary     Fetch a single interaction
// @Tags        Interactions
// @Produce     json
//
// @Param       id  path  string  true  "Interaction ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Interaction
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /interactions/{id} [get]
func (h *Handlers) GetInteraction(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "interaction id must be a UUID")
		return
	}

	rec, err := h.modSvc.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, rec)
}

// ListInteractions godoc
// @ID          listInteractions
// @Summary     List interactions (paginated)
// @Description Returns a page of interactions, newest first. Supports weak ETag via If-None-Match and may return 304. Filter with ?contributor_id=.
// @Tags        Interactions
// @Produce     json
//
// @Param       contributor_id  query   string  false "Scope to one contributor"
// @Param       If-None-Match   header  string  false "Return 304 if ETag matches"
// @Param       page            query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size       query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListInteractionsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /interactions [get]
func (h *Handlers) ListInteractions(c *gin.Context) {
	ctx := c.Request.Context()
	scope := strings.TrimSpace(c.Query("contributor_id"))
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.InteractionStats(ctx, h.db, scope)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"interactions:%s:%d:%d"`, scope, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.modSvc.ListPage(ctx, scope, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListInteractionsResponse{
		Interactions: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}
