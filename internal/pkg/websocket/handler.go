package websocket

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
)

// studentScoped lists the tables whose events carry a student id. Student
// sessions on these tables only see their own changes.
var studentScoped = map[changefeed.Table]bool{
	changefeed.TableStudents:               true,
	changefeed.TableSubmissions:            true,
	changefeed.TableApprovals:              true,
	changefeed.TableApplications:           true,
	changefeed.TableRequirementSubmissions: true,
}

// ClassLookup resolves the class of a student.
type ClassLookup func(ctx context.Context, studentID int64) (models.StudentClass, error)

// Handler for WebSocket connections
type Handler struct {
	feed     changefeed.Feed
	classOf  ClassLookup
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler. checkOrigin decides which
// browser origins may open a session; classOf scopes student sessions on
// broadcast tables to their class.
func NewHandler(feed changefeed.Feed, classOf ClassLookup, checkOrigin func(r *http.Request) bool, logger zerolog.Logger) *Handler {
	return &Handler{
		feed:    feed,
		classOf: classOf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With().Str("component", "websocket").Logger(),
	}
}

// ParseFilter builds the subscription filter for p from the query values.
// Students must name a table; on student-scoped tables they are pinned to
// their own student id, elsewhere to their class.
func ParseFilter(p auth.Principal, class models.StudentClass, table, studentID, eventID string) (changefeed.Filter, *dto.ErrorDetail, int) {
	var filter changefeed.Filter

	if table != "" {
		filter.Table = changefeed.Table(table)
		if !filter.Table.Valid() {
			return filter, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Unknown table").WithField("table"), http.StatusBadRequest
		}
	}
	if studentID != "" {
		id, err := strconv.ParseInt(studentID, 10, 64)
		if err != nil || id <= 0 {
			return filter, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid student ID").WithField("studentId"), http.StatusBadRequest
		}
		filter.StudentID = id
	}
	if eventID != "" {
		id, err := strconv.ParseInt(eventID, 10, 64)
		if err != nil || id <= 0 {
			return filter, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid event ID").WithField("eventId"), http.StatusBadRequest
		}
		filter.EventID = id
	}

	if p.IsAdmin() {
		return filter, nil, 0
	}

	if filter.Table == "" {
		return filter, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "table is required").WithField("table"), http.StatusBadRequest
	}
	if studentScoped[filter.Table] {
		if filter.StudentID != 0 && filter.StudentID != p.StudentID {
			return filter, dto.NewErrorDetail(dto.ErrorCodeForbidden, "Students may only watch their own records"), http.StatusForbidden
		}
		filter.StudentID = p.StudentID
	} else {
		filter.StudentID = 0
		filter.Class = string(class)
	}
	return filter, nil, 0
}

// HandleConnection godoc
// @Summary Watch record changes
// @Description Upgrades to a WebSocket session that receives change events for one table
// @Tags websocket
// @Security BearerAuth
// @Param table query string false "Table to watch (required for students)"
// @Param studentId query int false "Only changes for this student"
// @Param eventId query int false "Only changes for this placement event"
// @Success 101 {string} string "Switching Protocols to WebSocket"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /ws [get]
func (h *Handler) HandleConnection(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
		return
	}

	var class models.StudentClass
	if !p.IsAdmin() {
		var err error
		class, err = h.classOf(c.Request.Context(), p.StudentID)
		if err != nil {
			h.logger.Error().Err(err).Int64("studentID", p.StudentID).Msg("Failed to resolve student class")
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Could not resolve student")
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(errorDetail))
			return
		}
	}

	filter, errorDetail, status := ParseFilter(p, class, c.Query("table"), c.Query("studentId"), c.Query("eventId"))
	if errorDetail != nil {
		c.AbortWithStatusJSON(status, dto.NewErrorResponse(errorDetail))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("userID", p.UserID).
			Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		conn:   conn,
		sub:    h.feed.Subscribe(filter),
		userID: p.UserID,
		logger: h.logger,
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	h.logger.Info().
		Int64("userID", p.UserID).
		Str("table", string(filter.Table)).
		Int64("studentID", filter.StudentID).
		Str("remoteAddr", conn.RemoteAddr().String()).
		Msg("WebSocket session established")
}
