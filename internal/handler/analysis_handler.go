package handler

import (
	"net/http"

	"ballot-engine/internal/services"
	"ballot-engine/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler serves the stream-derived views. They may lag the ledger.
type AnalysisHandler struct {
	service *services.AnalyticsService
}

func NewAnalysisHandler(service *services.AnalyticsService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

func (h *AnalysisHandler) LiveResults(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewLiveResults(pollID, h.service.LiveResults(pollID))))
}

func (h *AnalysisHandler) Anomalies(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AnomaliesResponse{
		PollID:    pollID,
		Anomalies: h.service.Anomalies(c.Request.Context(), pollID),
	}))
}

func (h *AnalysisHandler) Trends(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.TrendsResponse{
		PollID: pollID,
		Trends: h.service.Trends(c.Request.Context(), pollID),
	}))
}

func (h *AnalysisHandler) Features(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(h.service.Features(pollID)))
}

func (h *AnalysisHandler) Forecast(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	out, err := h.service.Forecast(c.Request.Context(), pollID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *AnalysisHandler) Turnout(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	out, err := h.service.Turnout(c.Request.Context(), pollID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}
