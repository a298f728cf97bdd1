package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/app/services"
	"github.com/yigit/placementdesk/internal/middleware"
	"github.com/yigit/placementdesk/internal/pkg/helpers"
)

// EventController handles placement drives and applying to them
type EventController struct {
	events  *services.EventService
	tracker *services.ApplicationTracker
}

// NewEventController creates a new EventController
func NewEventController(events *services.EventService, tracker *services.ApplicationTracker) *EventController {
	return &EventController{
		events:  events,
		tracker: tracker,
	}
}

// CreateEvent creates a placement drive and announces it
// @Summary Create placement drive
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateEventRequest true "Drive"
// @Success 201 {object} dto.APIResponse{data=dto.EventResponse}
// @Router /events [post]
func (c *EventController) CreateEvent(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBindError(ctx, err)
		return
	}

	event, err := c.events.Create(ctx.Request.Context(), p, req.ToModel())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusCreated, dto.NewEventResponse(event))
}

// GetAllEvents lists the drives visible to the caller
// @Summary List placement drives
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (1-based)"
// @Param size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.PagedResponse{items=[]dto.EventResponse}}
// @Router /events [get]
func (c *EventController) GetAllEvents(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	events, err := c.events.List(ctx.Request.Context(), p)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	page, size := helpers.ParsePaginationParams(ctx)
	events, pagination := helpers.Paginate(events, page, size)

	resp := make([]dto.EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, dto.NewEventResponse(e))
	}
	respond(ctx, http.StatusOK, dto.PagedResponse{Items: resp, Pagination: pagination})
}

// GetEventByID returns a drive with its requirements
// @Summary Get placement drive
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} dto.APIResponse{data=dto.EventResponse}
// @Failure 404 {object} dto.ErrorResponse
// @Router /events/{id} [get]
func (c *EventController) GetEventByID(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Event")
	if !ok {
		return
	}

	event, err := c.events.Get(ctx.Request.Context(), p, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewEventResponse(event))
}

// UpdateEvent opens or closes a drive
// @Summary Open or close placement drive
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body dto.UpdateEventRequest true "Open flag"
// @Success 200 {object} dto.APIResponse{data=dto.EventResponse}
// @Router /events/{id} [patch]
func (c *EventController) UpdateEvent(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Event")
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBindError(ctx, err)
		return
	}

	event, err := c.events.SetOpen(ctx.Request.Context(), p, id, *req.IsOpen)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewEventResponse(event))
}

// Apply applies the calling student to a drive
// @Summary Apply to placement drive
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 201 {object} dto.APIResponse{data=dto.ApplicationResponse}
// @Failure 409 {object} dto.ErrorResponse "Already applied or not eligible"
// @Router /events/{id}/applications [post]
func (c *EventController) Apply(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	eventID, ok := parseID(ctx, "id", "Event")
	if !ok {
		return
	}

	application, err := c.tracker.Apply(ctx.Request.Context(), p, p.StudentID, eventID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusCreated, dto.NewApplicationResponse(application))
}

// GetEventApplications lists the applicants of a drive
// @Summary List applicants
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.ApplicationResponse}
// @Router /events/{id}/applications [get]
func (c *EventController) GetEventApplications(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	eventID, ok := parseID(ctx, "id", "Event")
	if !ok {
		return
	}

	applications, err := c.tracker.ListForEvent(ctx.Request.Context(), p, eventID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, applicationResponses(applications))
}

func applicationResponses(applications []*models.Application) []dto.ApplicationResponse {
	resp := make([]dto.ApplicationResponse, 0, len(applications))
	for _, a := range applications {
		resp = append(resp, dto.NewApplicationResponse(a))
	}
	return resp
}
