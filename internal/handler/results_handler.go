package handler

import (
	"context"
	"net/http"

	"ballot-engine/internal/services"
	"ballot-engine/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// ArchiveLinker hands out download links for archived polls.
type ArchiveLinker interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

type ResultsHandler struct {
	tally    *services.TallyService
	archiver *services.ArchiveService
	links    ArchiveLinker
}

func NewResultsHandler(tally *services.TallyService, archiver *services.ArchiveService, links ArchiveLinker) *ResultsHandler {
	return &ResultsHandler{tally: tally, archiver: archiver, links: links}
}

// Results reads the authoritative counters from the ballot ledger.
func (h *ResultsHandler) Results(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.tally.Results(c.Request.Context(), pollID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromResults(res)))
}

// Archive writes the archive document now, without waiting for the close event.
func (h *ResultsHandler) Archive(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if h.archiver == nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("archive storage not configured", "SERVICE_UNAVAILABLE"))
		return
	}
	if err := h.archiver.Archive(c.Request.Context(), pollID); err != nil {
		writeError(c, err)
		return
	}
	h.archiveLink(c)
}

func (h *ResultsHandler) ArchiveLink(c *gin.Context) {
	if _, ok := paramUUID(c, "id"); !ok {
		return
	}
	h.archiveLink(c)
}

func (h *ResultsHandler) archiveLink(c *gin.Context) {
	pollID, _ := paramUUID(c, "id")
	key := services.ArchiveKey(pollID)
	out := httpdto.ArchiveResponse{PollID: pollID.String(), Key: key}
	if h.links != nil {
		url, err := h.links.PresignGet(c.Request.Context(), key)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "SERVICE_UNAVAILABLE"))
			return
		}
		out.URL = url
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}
