package filestorage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/yigit/placementdesk/internal/config"
)

// ObjectStore stores uploaded documents and returns a stable public URL.
// Writing an existing name overwrites it.
type ObjectStore interface {
	// Put stores body under bucket/name and returns its public URL
	Put(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType string) (string, error)

	// Delete removes bucket/name; a missing object is not an error
	Delete(ctx context.Context, bucket, name string) error
}

// New returns the object store selected by configuration.
func New(cfg *config.Config) (ObjectStore, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "s3":
		store, err := NewS3Storage(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "", "local":
		store, err := NewLocalStorage(cfg.Server.StoragePath, cfg.PublicURL()+"/uploads")
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// Object names are derived from the record key and the file extension. A
// re-upload with the same extension overwrites the object; callers delete the
// superseded object when the extension changes.

// SubmissionObjectName names a student's assignment upload.
func SubmissionObjectName(studentID int64, assignment, filename string) string {
	return fmt.Sprintf("students/%d/%s%s", studentID, assignment, extension(filename))
}

// OfferLetterObjectName names the offer letter attached to an application.
func OfferLetterObjectName(applicationID int64, filename string) string {
	return fmt.Sprintf("applications/%d/offer_letter%s", applicationID, extension(filename))
}

// RequirementObjectName names an upload against a drive requirement.
func RequirementObjectName(applicationID, requirementID int64, filename string) string {
	return fmt.Sprintf("applications/%d/requirements/%d%s", applicationID, requirementID, extension(filename))
}

func extension(filename string) string {
	return strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
}
