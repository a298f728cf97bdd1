package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/models/dto"
)

// RegisterValidators installs the custom binding tags on gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return v.RegisterValidation("student_class", validateStudentClass)
}

func validateStudentClass(fl validator.FieldLevel) bool {
	return models.StudentClass(fl.Field().String()).Valid()
}

// AbortWithBindError writes a 400 response describing a failed ShouldBind call
func AbortWithBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
		errorDetail = errorDetail.WithDetails(err.Error())
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	fields := dto.NewValidationErrors()
	for _, fe := range validationErrs {
		fields.AddError(fieldName(fe), formatValidationError(fe))
	}

	errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Validation failed")
	errorDetail = errorDetail.WithDetails(fields.Errors)
	if len(fields.Errors) == 1 {
		errorDetail = errorDetail.WithField(fields.Errors[0].Field)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
}

func fieldName(e validator.FieldError) string {
	name := e.Field()
	if name == "" {
		return ""
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(e validator.FieldError) string {
	field := fieldName(e)
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + e.Param()
	case "max":
		return field + " must be at most " + e.Param()
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return field + " must be one of: " + e.Param()
	case "student_class":
		return field + " must be one of: SYIT SYCS TYIT TYCS"
	default:
		return field + " validation failed: " + e.Tag()
	}
}
