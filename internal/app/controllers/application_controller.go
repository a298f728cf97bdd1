package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/app/services"
	"github.com/yigit/placementdesk/internal/middleware"
)

// ApplicationController handles applications and their documents
type ApplicationController struct {
	tracker *services.ApplicationTracker
	uploads *services.UploadService
}

// NewApplicationController creates a new ApplicationController
func NewApplicationController(tracker *services.ApplicationTracker, uploads *services.UploadService) *ApplicationController {
	return &ApplicationController{
		tracker: tracker,
		uploads: uploads,
	}
}

// GetApplications lists a student's applications. Students see their own;
// admins pass the studentId query parameter.
// @Summary List applications
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param studentId query int false "Student ID (admins)"
// @Success 200 {object} dto.APIResponse{data=[]dto.ApplicationResponse}
// @Router /applications [get]
func (c *ApplicationController) GetApplications(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	studentID := p.StudentID
	if raw := ctx.Query("studentId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid student ID")
			errorDetail = errorDetail.WithField("studentId")
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
			return
		}
		studentID = id
	}
	if studentID == 0 {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "studentId is required")
		errorDetail = errorDetail.WithField("studentId")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	applications, err := c.tracker.ListForStudent(ctx.Request.Context(), p, studentID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, applicationResponses(applications))
}

// GetApplicationByID returns one application
// @Summary Get application
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationResponse}
// @Failure 404 {object} dto.ErrorResponse
// @Router /applications/{id} [get]
func (c *ApplicationController) GetApplicationByID(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Application")
	if !ok {
		return
	}

	application, err := c.tracker.Get(ctx.Request.Context(), p, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewApplicationResponse(application))
}

// AcceptApplication marks an application accepted
// @Summary Accept application
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param request body dto.DecisionRequest false "Notes"
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationResponse}
// @Failure 409 {object} dto.ErrorResponse "Transition not allowed"
// @Router /applications/{id}/accept [post]
func (c *ApplicationController) AcceptApplication(ctx *gin.Context) {
	c.decide(ctx, c.tracker.Accept)
}

// RejectApplication marks an application rejected
// @Summary Reject application
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param request body dto.DecisionRequest false "Notes"
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationResponse}
// @Failure 409 {object} dto.ErrorResponse "Transition not allowed"
// @Router /applications/{id}/reject [post]
func (c *ApplicationController) RejectApplication(ctx *gin.Context) {
	c.decide(ctx, c.tracker.Reject)
}

type applicationDecision func(ctx context.Context, p auth.Principal, applicationID int64, notes *string) (*models.Application, error)

func (c *ApplicationController) decide(ctx *gin.Context, decision applicationDecision) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Application")
	if !ok {
		return
	}

	var req dto.DecisionRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithBindError(ctx, err)
			return
		}
	}

	application, err := decision(ctx.Request.Context(), p, id, req.Notes)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewApplicationResponse(application))
}

// UploadOfferLetter attaches the company's offer letter to an accepted application
// @Summary Attach offer letter
// @Tags applications
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param file formData file true "Offer letter"
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationResponse}
// @Router /applications/{id}/offer-letter [put]
func (c *ApplicationController) UploadOfferLetter(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Application")
	if !ok {
		return
	}
	upload, file, ok := formUpload(ctx)
	if !ok {
		return
	}
	defer file.Close()

	application, err := c.uploads.AttachOfferLetter(ctx.Request.Context(), p, id, upload)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewApplicationResponse(application))
}

// GetRequirementSubmissions lists the documents uploaded for a drive's requirements
// @Summary List requirement submissions
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.RequirementSubmissionResponse}
// @Router /applications/{id}/requirements [get]
func (c *ApplicationController) GetRequirementSubmissions(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Application")
	if !ok {
		return
	}

	submissions, err := c.tracker.ListRequirements(ctx.Request.Context(), p, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := make([]dto.RequirementSubmissionResponse, 0, len(submissions))
	for _, s := range submissions {
		resp = append(resp, dto.NewRequirementSubmissionResponse(s))
	}
	respond(ctx, http.StatusOK, resp)
}

// UploadRequirement uploads a document for one drive requirement
// @Summary Submit requirement document
// @Tags applications
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param reqId path int true "Requirement ID"
// @Param file formData file true "Document"
// @Success 200 {object} dto.APIResponse{data=dto.RequirementSubmissionResponse}
// @Router /applications/{id}/requirements/{reqId} [put]
func (c *ApplicationController) UploadRequirement(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Application")
	if !ok {
		return
	}
	requirementID, ok := parseID(ctx, "reqId", "Requirement")
	if !ok {
		return
	}
	upload, file, ok := formUpload(ctx)
	if !ok {
		return
	}
	defer file.Close()

	submission, err := c.uploads.SubmitRequirement(ctx.Request.Context(), p, id, requirementID, upload)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewRequirementSubmissionResponse(submission))
}

// ReviewRequirement records an admin decision on a requirement document
// @Summary Review requirement document
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param reqId path int true "Requirement ID"
// @Param request body dto.ReviewRequest true "Decision"
// @Success 200 {object} dto.APIResponse{data=dto.RequirementSubmissionResponse}
// @Router /applications/{id}/requirements/{reqId}/review [post]
func (c *ApplicationController) ReviewRequirement(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Application")
	if !ok {
		return
	}
	requirementID, ok := parseID(ctx, "reqId", "Requirement")
	if !ok {
		return
	}

	var req dto.ReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBindError(ctx, err)
		return
	}

	submission, err := c.tracker.ReviewRequirement(ctx.Request.Context(), p, id, requirementID, services.Decision(req.Decision), req.Feedback)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewRequirementSubmissionResponse(submission))
}
