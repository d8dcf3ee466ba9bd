// Dataset reporting handlers: aggregate statistics and JSONL export.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omniguard/go-moderation-backend/internal/http/middleware"
)

// GetStats godoc
// @ID          getStats
// @Summary     Dataset statistics
// @Description Returns aggregate counts over the stored interactions: compliance buckets, schema violations, review queue depth, and verifier attribution.
// @Tags        Stats
// @Produce     json
//
// @Success     200  {object}  repo.DatasetStats
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.statsSvc.Overview(c.Request.Context())
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, stats)
}

// ExportDataset godoc
// @ID          exportDataset
// @Summary     Export verified interactions as JSONL
// @Description Streams every terminally verified interaction, one JSON object per line. Records still awaiting review are excluded.
// @Tags        Stats
// @Produce     application/x-ndjson
//
// @Success     200  {string}  string  "JSON lines"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /export [get]
func (h *Handlers) ExportDataset(c *gin.Context) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", `attachment; filename="interactions.jsonl"`)
	c.Status(http.StatusOK)

	if err := h.statsSvc.ExportJSONL(c.Request.Context(), c.Writer); err != nil {
		// The 200 is already committed, so an error envelope would land
		// inside the NDJSON body. Log, then drop the connection so the
		// client sees a truncated transfer instead of a silently short file.
		middleware.LoggerFrom(c).Error().Err(err).Msg("jsonl export aborted mid-stream")
		c.Abort()
		if hj, ok := c.Writer.(http.Hijacker); ok {
			if conn, _, herr := hj.Hijack(); herr == nil {
				conn.Close()
			}
		}
	}
}
