// Review HTTP handlers.
//
// This file exposes REST endpoints for the human review loop:
//   - GET    /reviews/pending             (queue, paginated)
//   - POST   /interactions/{id}/review    (submit a reviewer decision)
//   - POST   /interactions/{id}/cancel    (administrative cancel)
//
// Reviewer decisions are authoritative: they overwrite the automated verdict
// and move the interaction to its terminal state.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/omniguard/go-moderation-backend/internal/domain"
	"github.com/omniguard/go-moderation-backend/internal/lifecycle"
)

// ReviewRequest is the JSON payload for resolving a parked interaction.
type ReviewRequest struct {
	// Compliant is the reviewer's compliance determination.
	Compliant *bool `json:"compliant" binding:"required"`
	// Action is the disposition: allow, block, flag, or escalate.
	Action string `json:"action" binding:"required" example:"allow"`
	// ReviewedBy identifies the reviewer.
	ReviewedBy string `json:"reviewed_by" binding:"required" example:"rev-42"`
	// Notes optionally records the reviewer's reasoning.
	Notes string `json:"notes" example:"benign in context"`
}

// CancelRequest is the JSON payload for administratively cancelling a
// pending review.
type CancelRequest struct {
	// CancelledBy identifies who issued the override.
	CancelledBy string `json:"cancelled_by" binding:"required" example:"admin-1"`
	// Action optionally overrides the default escalate disposition.
	Action string `json:"action" example:"escalate"`
}

// ListPendingReviewsResponse wraps the review queue page.
type ListPendingReviewsResponse struct {
	Interactions []domain.Interaction `json:"interactions"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
}

// ListPendingReviews godoc
// @ID          listPendingReviews
// @Summary     List interactions awaiting human review
// @Description Returns the review queue, oldest submission first.
// @Tags        Reviews
// @Produce     json
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListPendingReviewsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /reviews/pending [get]
func (h *Handlers) ListPendingReviews(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, err := h.modSvc.PendingReviews(c.Request.Context(), page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListPendingReviewsResponse{
		Interactions: items,
		Page:         page,
		PageSize:     pageSize,
	})
}

// SubmitReview godoc
// @ID          submitReview
// @Summary     Resolve a pending interaction with a reviewer decision
// @Description Applies a human decision to an interaction awaiting review. The decision overwrites the automated verdict. Retrying the identical decision succeeds; conflicting re-reviews return 409.
// @Tags        Reviews
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                  true  "Interaction ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ReviewRequest  true  "Reviewer decision"
//
// @Success     200  {object}  domain.Interaction
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Not reviewable"
// @Router      /interactions/{id}/review [post]
func (h *Handlers) SubmitReview(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "interaction id must be a UUID")
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "compliant, action and reviewed_by are required")
		return
	}
	action, valid := domain.ParseAction(strings.TrimSpace(req.Action))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "action must be one of allow, block, flag, escalate")
		return
	}

	rec, err := h.modSvc.SubmitReview(c.Request.Context(), id, lifecycle.Decision{
		Compliant:  *req.Compliant,
		Action:     action,
		ReviewedBy: strings.TrimSpace(req.ReviewedBy),
		Notes:      strings.TrimSpace(req.Notes),
	})
	if err != nil {
		failService(c, err, ErrCodeReviewFailed)
		return
	}
	ok(c, http.StatusOK, rec)
}

// CancelInteraction godoc
// @ID          cancelInteraction
// @Summary     Administratively cancel a pending review
// @Description Resolves a parked interaction with an override attributed to the caller. The record stays non-compliant and receives the supplied disposition (default escalate).
// @Tags        Reviews
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                  true  "Interaction ID (UUID)"  format(uuid)
// @Param       body  body  handlers.CancelRequest  true  "Cancel payload"
//
// @Success     200  {object}  domain.Interaction
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Not cancellable"
// @Router      /interactions/{id}/cancel [post]
func (h *Handlers) CancelInteraction(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "interaction id must be a UUID")
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cancelled_by is required")
		return
	}
	action := domain.ActionEscalate
	if s := strings.TrimSpace(req.Action); s != "" {
		parsed, valid := domain.ParseAction(s)
		if !valid {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "action must be one of allow, block, flag, escalate")
			return
		}
		action = parsed
	}

	rec, err := h.modSvc.Cancel(c.Request.Context(), id, strings.TrimSpace(req.CancelledBy), action)
	if err != nil {
		failService(c, err, ErrCodeReviewFailed)
		return
	}
	ok(c, http.StatusOK, rec)
}
