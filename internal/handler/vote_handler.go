package handler

import (
	"net/http"

	"ballot-engine/internal/services"
	"ballot-engine/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	tally *services.TallyService
}

func NewVoteHandler(tally *services.TallyService) *VoteHandler {
	return &VoteHandler{tally: tally}
}

// Cast records the caller's single ballot for the poll.
func (h *VoteHandler) Cast(c *gin.Context) {
	participantID, ok := services.ParticipantIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	sel, err := req.ToSelection()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	rec, err := h.tally.CastVote(c.Request.Context(), participantID, pollID, sel)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromBallot(rec)))
}

func (h *VoteHandler) MyBallot(c *gin.Context) {
	participantID, ok := services.ParticipantIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	rec, err := h.tally.MyBallot(c.Request.Context(), participantID, pollID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromBallot(rec)))
}
