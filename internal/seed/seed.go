package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	appAuth "github.com/yigit/placementdesk/internal/app/auth"
	appModels "github.com/yigit/placementdesk/internal/app/models"
	appRepos "github.com/yigit/placementdesk/internal/app/repositories"
	appServices "github.com/yigit/placementdesk/internal/app/services"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/auth"
)

// AdminUserID is the user id carried by the seeded admin token.
const AdminUserID int64 = 1

// studentUserIDOffset maps seeded students onto user ids distinct from the admin.
const studentUserIDOffset int64 = 100

var defaultStudents = []appModels.Student{
	{UID: "demo-syit", Email: "syit.student@placementdesk.test", FullName: "Aarav Shah", RollNumber: "1", Class: appModels.ClassSYIT},
	{UID: "demo-sycs", Email: "sycs.student@placementdesk.test", FullName: "Diya Kulkarni", RollNumber: "1", Class: appModels.ClassSYCS},
	{UID: "demo-tyit", Email: "tyit.student@placementdesk.test", FullName: "Rohan Mehta", RollNumber: "1", Class: appModels.ClassTYIT},
	{UID: "demo-tycs", Email: "tycs.student@placementdesk.test", FullName: "Isha Nair", RollNumber: "1", Class: appModels.ClassTYCS},
}

// StudentUserID returns the user id used in a seeded student's token.
func StudentUserID(studentID int64) int64 {
	return studentUserIDOffset + studentID
}

// CreateDefaultData seeds one student per class, two open drives and a welcome
// notification. Existing rows are left alone, so running it twice is harmless.
// It returns the seeded students.
func CreateDefaultData(ctx context.Context, store appRepos.Store, svc *appServices.Services, lgr zerolog.Logger) ([]*appModels.Student, error) {
	lgr.Info().Msg("Checking/Creating default data (students, drives, notifications)...")
	var finalErr error // To collect potential errors without stopping the process

	// --- Students --- //
	students := make([]*appModels.Student, 0, len(defaultStudents))
	for _, s := range defaultStudents {
		student := s
		created, err := svc.Students.Register(ctx, appAuth.System, &student)
		switch {
		case err == nil:
			lgr.Info().Int64("studentID", created.ID).Str("class", string(created.Class)).Msg("Default student created")
			students = append(students, created)
		case errors.Is(err, apperrors.ErrStudentExists):
			existing, getErr := store.GetStudentByUID(ctx, s.UID)
			if getErr != nil {
				finalErr = errors.Join(finalErr, getErr)
				continue
			}
			students = append(students, existing)
		default:
			lgr.Error().Err(err).Str("uid", s.UID).Msg("Error creating default student")
			finalErr = errors.Join(finalErr, err)
		}
	}

	// --- Placement drives --- //
	events, err := store.ListEvents(ctx)
	if err != nil {
		lgr.Error().Err(err).Msg("Error listing placement events")
		finalErr = errors.Join(finalErr, err)
	} else if len(events) == 0 {
		deadline := time.Now().UTC().AddDate(0, 1, 0)
		drives := []*appModels.PlacementEvent{
			{
				Title:           "Graduate Software Engineer",
				Company:         "Northwind Systems",
				Description:     "Full-time role for final year students.",
				Requirements:    "Strong fundamentals in programming and databases.",
				EligibleClasses: []appModels.StudentClass{appModels.ClassTYIT, appModels.ClassTYCS},
				AdditionalRequirements: []appModels.PlacementRequirement{
					{RequirementType: "Resume", Required: true},
					{RequirementType: "Cover Letter", Required: false},
				},
				IsOpen:   true,
				Deadline: &deadline,
			},
			{
				Title:        "Summer Internship",
				Company:      "Contoso Labs",
				Description:  "Eight week internship open to every class.",
				Requirements: "Any programming language.",
				IsOpen:       true,
			},
		}
		for _, drive := range drives {
			created, err := svc.Events.Create(ctx, appAuth.System, drive)
			if err != nil {
				lgr.Error().Err(err).Str("company", drive.Company).Msg("Error creating default placement event")
				finalErr = errors.Join(finalErr, err)
				continue
			}
			lgr.Info().Int64("eventID", created.ID).Str("company", created.Company).Msg("Default placement event created")
		}
	} else {
		lgr.Info().Msg("Placement events already exist, skipping creation")
	}

	// --- Welcome notification --- //
	general := appModels.NotificationGeneral
	notifications, err := store.ListNotifications(ctx, appRepos.NotificationFilter{})
	if err != nil {
		lgr.Error().Err(err).Msg("Error listing notifications")
		finalErr = errors.Join(finalErr, err)
	} else if !hasType(notifications, general) {
		_, err := svc.Notifications.Publish(ctx, appAuth.System, appServices.NewNotification{
			Title:   "Welcome to PlacementDesk",
			Message: "Upload your offer letter to unlock the remaining internship assignments.",
			Type:    general,
		})
		if err != nil {
			lgr.Error().Err(err).Msg("Error creating welcome notification")
			finalErr = errors.Join(finalErr, err)
		}
	}

	lgr.Info().Msg("Default data check/creation finished.")
	return students, finalErr // Return collected errors, if any
}

func hasType(notifications []*appModels.Notification, t appModels.NotificationType) bool {
	for _, n := range notifications {
		if n.Type == t {
			return true
		}
	}
	return false
}

// LogDevTokens signs and logs tokens for the admin and each seeded student so
// the API can be exercised without an identity provider.
func LogDevTokens(jwtService *auth.JWTService, students []*appModels.Student, lgr zerolog.Logger) error {
	token, expiresAt, err := jwtService.GenerateToken(AdminUserID, appModels.RoleAdmin, 0)
	if err != nil {
		return fmt.Errorf("failed to sign admin token: %w", err)
	}
	lgr.Info().Str("role", string(appModels.RoleAdmin)).Time("expiresAt", expiresAt).Str("token", token).Msg("Development token")

	for _, s := range students {
		token, expiresAt, err := jwtService.GenerateToken(StudentUserID(s.ID), appModels.RoleStudent, s.ID)
		if err != nil {
			return fmt.Errorf("failed to sign token for student %d: %w", s.ID, err)
		}
		lgr.Info().
			Str("role", string(appModels.RoleStudent)).
			Int64("studentID", s.ID).
			Str("class", string(s.Class)).
			Time("expiresAt", expiresAt).
			Str("token", token).
			Msg("Development token")
	}
	return nil
}
