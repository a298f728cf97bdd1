package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/app/services"
	"github.com/yigit/placementdesk/internal/middleware"
)

// SubmissionController handles assignment submissions and their approval state
type SubmissionController struct {
	ledger  *services.SubmissionLedger
	gate    *services.ApprovalGate
	uploads *services.UploadService
}

// NewSubmissionController creates a new SubmissionController
func NewSubmissionController(ledger *services.SubmissionLedger, gate *services.ApprovalGate, uploads *services.UploadService) *SubmissionController {
	return &SubmissionController{
		ledger:  ledger,
		gate:    gate,
		uploads: uploads,
	}
}

// target parses the student id and assignment type path parameters.
func (c *SubmissionController) target(ctx *gin.Context) (int64, models.AssignmentType, bool) {
	studentID, ok := parseID(ctx, "id", "Student")
	if !ok {
		return 0, "", false
	}
	return studentID, models.AssignmentType(ctx.Param("type")), true
}

// ListSubmissions returns every assignment slot of a student
// @Summary List assignments
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.AssignmentListResponse}
// @Router /students/{id}/submissions [get]
func (c *SubmissionController) ListSubmissions(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	studentID, ok := parseID(ctx, "id", "Student")
	if !ok {
		return
	}

	view, err := c.ledger.ListForStudent(ctx.Request.Context(), p, studentID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := dto.AssignmentListResponse{
		StudentID:   view.StudentID,
		Assignments: make([]dto.AssignmentSlotResponse, 0, len(view.Slots)),
		Approval:    dto.NewApprovalResponse(view.Approval),
	}
	for _, slot := range view.Slots {
		resp.Assignments = append(resp.Assignments, dto.AssignmentSlotResponse{
			Type:          slot.Definition.Type,
			Title:         slot.Definition.Title,
			Required:      slot.Definition.Required,
			UnlocksOthers: slot.Definition.UnlocksOthers,
			AwardsCredits: slot.Definition.AwardsCredits,
			Status:        slot.Status,
			Locked:        slot.Locked,
			Submission:    dto.NewSubmissionResponse(slot.Submission),
		})
	}
	respond(ctx, http.StatusOK, resp)
}

// GetSubmission returns one submission
// @Summary Get submission
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param type path string true "Assignment type"
// @Success 200 {object} dto.APIResponse{data=dto.SubmissionResponse}
// @Failure 404 {object} dto.ErrorResponse
// @Router /students/{id}/submissions/{type} [get]
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	studentID, assignment, ok := c.target(ctx)
	if !ok {
		return
	}

	submission, err := c.ledger.Get(ctx.Request.Context(), p, studentID, assignment)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewSubmissionResponse(submission))
}

// UploadSubmission uploads a document and records it as submitted
// @Summary Submit assignment
// @Tags submissions
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param type path string true "Assignment type"
// @Param file formData file true "Document"
// @Success 200 {object} dto.APIResponse{data=dto.SubmissionResponse}
// @Failure 423 {object} dto.ErrorResponse "Assignment locked"
// @Failure 503 {object} dto.ErrorResponse "Upload failed"
// @Router /students/{id}/submissions/{type} [put]
func (c *SubmissionController) UploadSubmission(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	studentID, assignment, ok := c.target(ctx)
	if !ok {
		return
	}
	upload, file, ok := formUpload(ctx)
	if !ok {
		return
	}
	defer file.Close()

	submission, err := c.uploads.SubmitAssignment(ctx.Request.Context(), p, studentID, assignment, upload)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewSubmissionResponse(submission))
}

// WithdrawSubmission deletes a submission
// @Summary Withdraw submission
// @Tags submissions
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param type path string true "Assignment type"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse}
// @Failure 409 {object} dto.ErrorResponse "Submission already approved"
// @Router /students/{id}/submissions/{type} [delete]
func (c *SubmissionController) WithdrawSubmission(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	studentID, assignment, ok := c.target(ctx)
	if !ok {
		return
	}

	if err := c.uploads.WithdrawAssignment(ctx.Request.Context(), p, studentID, assignment); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.SuccessResponse{Message: "Submission withdrawn"})
}

// ReviewSubmission records an admin decision
// @Summary Review submission
// @Tags submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param type path string true "Assignment type"
// @Param request body dto.ReviewRequest true "Decision"
// @Success 200 {object} dto.APIResponse{data=dto.SubmissionResponse}
// @Router /students/{id}/submissions/{type}/review [post]
func (c *SubmissionController) ReviewSubmission(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	studentID, assignment, ok := c.target(ctx)
	if !ok {
		return
	}

	var req dto.ReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBindError(ctx, err)
		return
	}

	submission, err := c.ledger.Review(ctx.Request.Context(), p, studentID, assignment, services.Decision(req.Decision), req.Feedback)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewSubmissionResponse(submission))
}

// GetApproval returns the reconciled approval state
// @Summary Get approval state
// @Tags approval
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApprovalResponse}
// @Router /students/{id}/approval [get]
func (c *SubmissionController) GetApproval(ctx *gin.Context) {
	c.approval(ctx, c.gate.State)
}

// ApproveOfferLetter sets the offer letter approval flag
// @Summary Approve offer letter
// @Tags approval
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApprovalResponse}
// @Failure 409 {object} dto.ErrorResponse "Offer letter not approved as a submission"
// @Router /students/{id}/approval/offer-letter [post]
func (c *SubmissionController) ApproveOfferLetter(ctx *gin.Context) {
	c.approval(ctx, c.gate.ApproveOfferLetter)
}

// AwardCredits awards internship credits once
// @Summary Award credits
// @Tags approval
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApprovalResponse}
// @Failure 409 {object} dto.ErrorResponse "Already awarded or not eligible"
// @Router /students/{id}/approval/credits [post]
func (c *SubmissionController) AwardCredits(ctx *gin.Context) {
	c.approval(ctx, c.gate.AwardCredits)
}

// RevokeCredits takes awarded credits back
// @Summary Revoke credits
// @Tags approval
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApprovalResponse}
// @Router /students/{id}/approval/credits [delete]
func (c *SubmissionController) RevokeCredits(ctx *gin.Context) {
	c.approval(ctx, c.gate.RevokeCredits)
}

type approvalAction func(ctx context.Context, p auth.Principal, studentID int64) (*models.ApprovalRecord, error)

func (c *SubmissionController) approval(ctx *gin.Context, action approvalAction) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	studentID, ok := parseID(ctx, "id", "Student")
	if !ok {
		return
	}

	record, err := action(ctx.Request.Context(), p, studentID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewApprovalResponse(record))
}
