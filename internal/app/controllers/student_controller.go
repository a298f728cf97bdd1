package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/app/services"
	"github.com/yigit/placementdesk/internal/middleware"
	"github.com/yigit/placementdesk/internal/pkg/helpers"
)

// StudentController handles student profiles
type StudentController struct {
	studentService *services.StudentService
}

// NewStudentController creates a new StudentController
func NewStudentController(studentService *services.StudentService) *StudentController {
	return &StudentController{
		studentService: studentService,
	}
}

// RegisterStudent registers a student
// @Summary Register a student
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RegisterStudentRequest true "Student information"
// @Success 201 {object} dto.APIResponse{data=dto.StudentResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /students [post]
func (c *StudentController) RegisterStudent(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.RegisterStudentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBindError(ctx, err)
		return
	}

	student, err := c.studentService.Register(ctx.Request.Context(), p, req.ToModel())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusCreated, dto.NewStudentResponse(student))
}

// GetAllStudents lists every student
// @Summary List students
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (1-based)"
// @Param size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.PagedResponse{items=[]dto.StudentResponse}}
// @Router /students [get]
func (c *StudentController) GetAllStudents(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	students, err := c.studentService.List(ctx.Request.Context(), p)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	page, size := helpers.ParsePaginationParams(ctx)
	students, pagination := helpers.Paginate(students, page, size)

	resp := make([]dto.StudentResponse, 0, len(students))
	for _, s := range students {
		resp = append(resp, dto.NewStudentResponse(s))
	}
	respond(ctx, http.StatusOK, dto.PagedResponse{Items: resp, Pagination: pagination})
}

// GetStudentByID retrieves a student profile
// @Summary Get student profile
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Failure 404 {object} dto.ErrorResponse
// @Router /students/{id} [get]
func (c *StudentController) GetStudentByID(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Student")
	if !ok {
		return
	}

	student, err := c.studentService.Get(ctx.Request.Context(), p, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewStudentResponse(student))
}

// UpdateStudent edits a student profile
// @Summary Update student profile
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param request body dto.UpdateStudentRequest true "Profile fields"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Router /students/{id} [patch]
func (c *StudentController) UpdateStudent(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Student")
	if !ok {
		return
	}

	var req dto.UpdateStudentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBindError(ctx, err)
		return
	}

	update := repositories.StudentProfileUpdate{
		FullName:   req.FullName,
		RollNumber: req.RollNumber,
	}
	if req.Class != nil {
		class := models.StudentClass(*req.Class)
		update.Class = &class
	}

	student, err := c.studentService.UpdateProfile(ctx.Request.Context(), p, id, update)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewStudentResponse(student))
}
