package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/placementdesk/internal/app/controllers"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/app/repositories/memory"
	"github.com/yigit/placementdesk/internal/app/routes"
	"github.com/yigit/placementdesk/internal/app/services"
	"github.com/yigit/placementdesk/internal/middleware"
	"github.com/yigit/placementdesk/internal/pkg/auth"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
	"github.com/yigit/placementdesk/internal/pkg/filestorage"
	"github.com/yigit/placementdesk/internal/pkg/websocket"
	"github.com/yigit/placementdesk/internal/worker"
)

type api struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
	store  *memory.DB
	admin  string
}

// envelope mirrors dto.APIResponse with raw data for per-test decoding.
type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *dto.ErrorDetail `json:"error"`
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	ctx, cancel := context.WithCancel(context.Background())
	hub := changefeed.NewHub(zerolog.Nop())
	go hub.Run(ctx)
	pool := worker.NewPool(2, zerolog.Nop())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})

	objects, err := filestorage.NewLocalStorage(t.TempDir(), "http://files.test/uploads")
	require.NoError(t, err)

	store := memory.New()
	svc := services.NewServices(services.Deps{
		Store:               store,
		Catalog:             models.MustDefaultCatalog(),
		Feed:                hub,
		Objects:             objects,
		Pool:                pool,
		Logger:              zerolog.Nop(),
		Bucket:              "documents",
		CreditsPerAward:     2,
		RecentNotifications: 5,
		MaxUploadBytes:      1 << 20,
	})

	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: "test-secret", AccessTokenExp: time.Hour, TokenIssuer: "test"})

	router := gin.New()
	routes.SetupRouter(router, routes.Controllers{
		Student:      controllers.NewStudentController(svc.Students),
		Submission:   controllers.NewSubmissionController(svc.Ledger, svc.Gate, svc.Uploads),
		Event:        controllers.NewEventController(svc.Events, svc.Tracker),
		Application:  controllers.NewApplicationController(svc.Tracker, svc.Uploads),
		Notification: controllers.NewNotificationController(svc.Notifications),
		Health:       controllers.NewHealthController(store, "demo"),
	}, middleware.NewAuthMiddleware(jwtService), websocket.NewHandler(hub, func(ctx context.Context, studentID int64) (models.StudentClass, error) {
		student, err := store.GetStudentByID(ctx, studentID)
		if err != nil {
			return "", err
		}
		return student.Class, nil
	}, func(*http.Request) bool { return true }, zerolog.Nop()))

	a := &api{t: t, router: router, jwt: jwtService, store: store}
	a.admin = a.token(1, models.RoleAdmin, 0)
	return a
}

func (a *api) token(userID int64, role models.RoleType, studentID int64) string {
	token, _, err := a.jwt.GenerateToken(userID, role, studentID)
	require.NoError(a.t, err)
	return token
}

func (a *api) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func (a *api) upload(path, token, filename, content string) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(a.t, err)
	require.NoError(a.t, w.Close())

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return a.send(req, token)
}

func (a *api) send(req *http.Request, token string) (int, envelope) {
	a.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// registerStudent registers a student through the API and returns its id and token.
func (a *api) registerStudent(uid string, class models.StudentClass) (int64, string) {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/v1/students", a.admin, dto.RegisterStudentRequest{
		UID: uid, Email: uid + "@college.edu", FullName: "Student " + uid, Class: string(class),
	})
	require.Equal(a.t, http.StatusCreated, status)
	student := decode[dto.StudentResponse](a.t, env)
	return student.ID, a.token(100+student.ID, models.RoleStudent, student.ID)
}

func TestAuthentication(t *testing.T) {
	a := newAPI(t)
	_, student := a.registerStudent("s1", models.ClassTYIT)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{name: "health is public", method: http.MethodGet, path: "/api/v1/health", wantStatus: http.StatusOK},
		{name: "missing token", method: http.MethodGet, path: "/api/v1/events", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodGet, path: "/api/v1/events", token: "not-a-token", wantStatus: http.StatusUnauthorized},
		{name: "student lists events", method: http.MethodGet, path: "/api/v1/events", token: student, wantStatus: http.StatusOK},
		{name: "student cannot list students", method: http.MethodGet, path: "/api/v1/students", token: student, wantStatus: http.StatusForbidden},
		{name: "admin lists students", method: http.MethodGet, path: "/api/v1/students", token: a.admin, wantStatus: http.StatusOK},
		{name: "bad id", method: http.MethodGet, path: "/api/v1/students/abc", token: a.admin, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := a.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestStudentController_Register(t *testing.T) {
	a := newAPI(t)

	status, env := a.do(http.MethodPost, "/api/v1/students", a.admin, dto.RegisterStudentRequest{
		UID: "x", Email: "x@college.edu", FullName: "X", Class: "FYIT",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrorCodeValidationFailed, env.Error.Code)
	assert.Equal(t, "class", env.Error.Field)

	id, token := a.registerStudent("s1", models.ClassSYCS)

	status, env = a.do(http.MethodPost, "/api/v1/students", a.admin, dto.RegisterStudentRequest{
		UID: "s1", Email: "other@college.edu", FullName: "Dup", Class: "SYCS",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "STUDENT_EXISTS", env.Error.Reason)

	class := "TYCS"
	status, env = a.do(http.MethodPatch, "/api/v1/students/"+itoa(id), token, dto.UpdateStudentRequest{Class: &class})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.ClassTYCS, decode[dto.StudentResponse](t, env).Class)

	other, _ := a.registerStudent("s2", models.ClassSYIT)
	status, _ = a.do(http.MethodGet, "/api/v1/students/"+itoa(other), token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestSubmissionFlow(t *testing.T) {
	a := newAPI(t)
	id, token := a.registerStudent("s1", models.ClassTYIT)
	base := "/api/v1/students/" + itoa(id)

	// locked until the offer letter is approved
	status, env := a.upload(base+"/submissions/weekly_report", token, "week1.pdf", "report")
	assert.Equal(t, http.StatusLocked, status)
	assert.Equal(t, dto.ErrorCodeLockedAssignment, env.Error.Code)

	status, env = a.upload(base+"/submissions/offer_letter", token, "offer.pdf", "offer")
	require.Equal(t, http.StatusOK, status)
	sub := decode[dto.SubmissionResponse](t, env)
	assert.Equal(t, models.SubmissionSubmitted, sub.Status)
	assert.Contains(t, sub.FileURL, "students/"+itoa(id)+"/offer_letter.pdf")

	status, _ = a.do(http.MethodPost, base+"/submissions/offer_letter/review", token, dto.ReviewRequest{Decision: "approved"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = a.do(http.MethodPost, base+"/submissions/offer_letter/review", a.admin, dto.ReviewRequest{Decision: "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodPost, base+"/submissions/offer_letter/review", a.admin, dto.ReviewRequest{Decision: "approved"})
	require.Equal(t, http.StatusOK, status)

	status, env = a.do(http.MethodPost, base+"/approval/offer-letter", a.admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[dto.ApprovalResponse](t, env).OfferLetterApproved)

	status, _ = a.upload(base+"/submissions/weekly_report", token, "week1.pdf", "report")
	require.Equal(t, http.StatusOK, status)

	status, env = a.do(http.MethodGet, base+"/submissions", token, nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[dto.AssignmentListResponse](t, env)
	require.Len(t, list.Assignments, 6)
	for _, slot := range list.Assignments {
		assert.False(t, slot.Locked, slot.Type)
	}

	// credits need the completion letter
	status, env = a.do(http.MethodPost, base+"/approval/credits", a.admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "SUBMISSION_NOT_FOUND", env.Error.Reason)

	status, _ = a.upload(base+"/submissions/completion_letter", token, "done.pdf", "done")
	require.Equal(t, http.StatusOK, status)
	status, _ = a.do(http.MethodPost, base+"/approval/credits", a.admin, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = a.do(http.MethodPost, base+"/approval/credits", a.admin, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, dto.ErrorCodeAlreadyAwarded, env.Error.Code)

	status, env = a.do(http.MethodGet, base, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, decode[dto.StudentResponse](t, env).TotalCredits)

	// approved submissions are final for students
	status, _ = a.do(http.MethodDelete, base+"/submissions/offer_letter", token, nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = a.do(http.MethodDelete, base+"/submissions/weekly_report", token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = a.do(http.MethodGet, base+"/submissions/weekly_report", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPlacementFlow(t *testing.T) {
	a := newAPI(t)
	_, tyit := a.registerStudent("s1", models.ClassTYIT)
	_, syit := a.registerStudent("s2", models.ClassSYIT)

	status, env := a.do(http.MethodPost, "/api/v1/events", a.admin, dto.CreateEventRequest{
		Title:           "Graduate Engineer",
		Company:         "Acme",
		EligibleClasses: []string{"TYIT"},
		AdditionalRequirements: []dto.RequirementRequest{
			{RequirementType: "Resume", Required: true},
		},
	})
	require.Equal(t, http.StatusCreated, status)
	event := decode[dto.EventResponse](t, env)
	require.Len(t, event.AdditionalRequirements, 1)
	eventPath := "/api/v1/events/" + itoa(event.ID)

	status, _ = a.do(http.MethodGet, eventPath, syit, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, env = a.do(http.MethodPost, eventPath+"/applications", syit, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CLASS_EXCLUDED", env.Error.Reason)

	status, env = a.do(http.MethodPost, eventPath+"/applications", tyit, nil)
	require.Equal(t, http.StatusCreated, status)
	application := decode[dto.ApplicationResponse](t, env)
	assert.Equal(t, models.ApplicationApplied, application.Status)
	appPath := "/api/v1/applications/" + itoa(application.ID)

	status, env = a.do(http.MethodPost, eventPath+"/applications", tyit, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_APPLIED", env.Error.Reason)

	status, _ = a.upload(appPath+"/requirements/"+itoa(event.AdditionalRequirements[0].ID), tyit, "cv.pdf", "cv")
	require.Equal(t, http.StatusOK, status)
	status, env = a.do(http.MethodGet, appPath+"/requirements", tyit, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]dto.RequirementSubmissionResponse](t, env), 1)

	status, _ = a.upload(appPath+"/offer-letter", tyit, "offer.pdf", "offer")
	assert.Equal(t, http.StatusConflict, status)

	status, _ = a.do(http.MethodPost, appPath+"/accept", a.admin, dto.DecisionRequest{})
	require.Equal(t, http.StatusOK, status)
	status, _ = a.do(http.MethodPost, appPath+"/accept", a.admin, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = a.do(http.MethodPost, appPath+"/reject", a.admin, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, env = a.upload(appPath+"/offer-letter", tyit, "offer.pdf", "offer")
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, decode[dto.ApplicationResponse](t, env).OfferLetterURL)

	status, env = a.do(http.MethodGet, "/api/v1/applications", tyit, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]dto.ApplicationResponse](t, env), 1)

	status, _ = a.do(http.MethodGet, "/api/v1/applications", a.admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = a.do(http.MethodGet, eventPath+"/applications", a.admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]dto.ApplicationResponse](t, env), 1)

	isOpen := false
	status, env = a.do(http.MethodPatch, eventPath, a.admin, dto.UpdateEventRequest{IsOpen: &isOpen})
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[dto.EventResponse](t, env).AcceptingApplications)
}

func TestNotificationFlow(t *testing.T) {
	a := newAPI(t)
	_, tyit := a.registerStudent("s1", models.ClassTYIT)
	_, sycs := a.registerStudent("s2", models.ClassSYCS)

	status, env := a.do(http.MethodPost, "/api/v1/notifications", a.admin, dto.CreateNotificationRequest{
		Title: "Final years", Message: "Drive next week", Type: "placement", TargetClasses: []string{"TYIT", "TYCS"},
	})
	require.Equal(t, http.StatusCreated, status)
	created := decode[dto.NotificationResponse](t, env)

	status, env = a.do(http.MethodGet, "/api/v1/notifications", tyit, nil)
	require.Equal(t, http.StatusOK, status)
	feed := decode[dto.NotificationFeedResponse](t, env)
	require.Len(t, feed.Notifications, 1)
	assert.Equal(t, 1, feed.UnreadCount)

	status, env = a.do(http.MethodGet, "/api/v1/notifications", sycs, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[dto.NotificationFeedResponse](t, env).Notifications)

	readPath := "/api/v1/notifications/" + itoa(created.ID) + "/read"
	status, _ = a.do(http.MethodPost, readPath, sycs, nil)
	assert.Equal(t, http.StatusNotFound, status)

	for i := 0; i < 2; i++ {
		status, env = a.do(http.MethodPost, readPath, tyit, nil)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, decode[dto.NotificationResponse](t, env).Read)
	}

	status, env = a.do(http.MethodGet, "/api/v1/notifications", tyit, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decode[dto.NotificationFeedResponse](t, env).UnreadCount)

	status, _ = a.do(http.MethodPost, "/api/v1/notifications", tyit, dto.CreateNotificationRequest{Title: "x"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestReadOnlyDemoStore(t *testing.T) {
	a := newAPI(t)
	a.store.SetReadOnly(true)

	status, env := a.do(http.MethodPost, "/api/v1/students", a.admin, dto.RegisterStudentRequest{
		UID: "x", Email: "x@college.edu", FullName: "X", Class: "TYIT",
	})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "READ_ONLY", env.Error.Reason)

	status, _ = a.do(http.MethodGet, "/api/v1/events", a.admin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
