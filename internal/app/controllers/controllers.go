package controllers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/app/services"
)

// uploadField is the multipart form field carrying uploaded documents.
const uploadField = "file"

// principal returns the authenticated caller, answering 401 when JWTAuth did
// not run.
func principal(ctx *gin.Context) (auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
		return auth.Principal{}, false
	}
	return p, true
}

// parseID reads a positive int64 path parameter.
func parseID(ctx *gin.Context, param, label string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(param), 10, 64)
	if err != nil || id <= 0 {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, fmt.Sprintf("Invalid %s ID", label))
		errorDetail = errorDetail.WithDetails(fmt.Sprintf("%s ID must be a valid number", label))
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return 0, false
	}
	return id, true
}

// formUpload opens the uploaded file. The caller closes the returned file.
func formUpload(ctx *gin.Context) (services.Upload, multipart.File, bool) {
	header, err := ctx.FormFile(uploadField)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "File is required")
		errorDetail = errorDetail.WithField(uploadField).WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return services.Upload{}, nil, false
	}

	file, err := header.Open()
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Could not read uploaded file")
		errorDetail = errorDetail.WithField(uploadField)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return services.Upload{}, nil, false
	}

	return services.Upload{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, file, true
}

func respond(ctx *gin.Context, status int, data interface{}) {
	ctx.JSON(status, dto.APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}
