package handler

import (
	"net/http"
	"strconv"

	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/services"
	"ballot-engine/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PollHandler struct {
	service *services.PollService
}

func NewPollHandler(service *services.PollService) *PollHandler {
	return &PollHandler{service: service}
}

func (h *PollHandler) Create(c *gin.Context) {
	var req httpdto.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	in, err := req.ToInput()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	creatorID, _ := services.ParticipantIDFromContext(c.Request.Context())
	p, err := h.service.Create(c.Request.Context(), creatorID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromPoll(p)))
}

func (h *PollHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	filter := poll.Filter{
		Kind:   poll.Kind(c.Query("kind")),
		Status: poll.Status(c.Query("status")),
		Page:   page,
		Size:   size,
	}
	if raw := c.Query("survey_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid survey_id")
			return
		}
		filter.SurveyID = uuid.NullUUID{UUID: id, Valid: true}
	}
	filter = filter.Normalize()

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.Page[httpdto.PollResponse]{
		Items: httpdto.FromPollSlice(items),
		Total: total,
		Page:  filter.Page,
		Size:  filter.Size,
	}))
}

func (h *PollHandler) GetByID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromPoll(p)))
}

func (h *PollHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.UpdatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	u, err := req.ToUpdate()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.service.Update(c.Request.Context(), id, u)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromPoll(p)))
}

func (h *PollHandler) Transition(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	p, err := h.service.Transition(c.Request.Context(), id, poll.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromPoll(p)))
}

func (h *PollHandler) Delete(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PollHandler) AddChoice(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	in, err := req.ToInput()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	choice, err := h.service.AddChoice(c.Request.Context(), pollID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromChoice(choice)))
}

func (h *PollHandler) UpdateChoice(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	choiceID, ok := paramUUID(c, "choice_id")
	if !ok {
		return
	}
	var req httpdto.ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	in, err := req.ToInput()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	choice, err := h.service.UpdateChoice(c.Request.Context(), pollID, choiceID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromChoice(choice)))
}

func (h *PollHandler) RemoveChoice(c *gin.Context) {
	pollID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	choiceID, ok := paramUUID(c, "choice_id")
	if !ok {
		return
	}
	if err := h.service.RemoveChoice(c.Request.Context(), pollID, choiceID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
