package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories/memory"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
	"github.com/yigit/placementdesk/internal/pkg/filestorage"
	"github.com/yigit/placementdesk/internal/worker"
)

type recorder struct {
	mu     sync.Mutex
	events []changefeed.Event
}

func (r *recorder) Publish(_ context.Context, e changefeed.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) find(table changefeed.Table, op changefeed.Op) []changefeed.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []changefeed.Event
	for _, e := range r.events {
		if e.Table == table && e.Op == op {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc   *Services
	store *memory.DB
	feed  *recorder
	admin auth.Principal
}

func newFixture(t *testing.T, objects filestorage.ObjectStore) *fixture {
	t.Helper()

	if objects == nil {
		local, err := filestorage.NewLocalStorage(t.TempDir(), "http://files.test/uploads")
		require.NoError(t, err)
		objects = local
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(2, zerolog.Nop())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})

	store := memory.New()
	feed := &recorder{}
	svc := NewServices(Deps{
		Store:               store,
		Catalog:             models.MustDefaultCatalog(),
		Feed:                feed,
		Objects:             objects,
		Pool:                pool,
		Logger:              zerolog.Nop(),
		Bucket:              "documents",
		CreditsPerAward:     2,
		RecentNotifications: 3,
		MaxUploadBytes:      1 << 20,
	})
	return &fixture{svc: svc, store: store, feed: feed, admin: auth.Principal{UserID: 1, Role: models.RoleAdmin}}
}

// register creates a student and returns the principal of their session.
func (f *fixture) register(t *testing.T, uid string, class models.StudentClass) auth.Principal {
	t.Helper()
	s, err := f.svc.Students.Register(context.Background(), f.admin, &models.Student{
		UID: uid, Email: uid + "@college.edu", FullName: uid, Class: class,
	})
	require.NoError(t, err)
	return auth.Principal{UserID: 100 + s.ID, Role: models.RoleStudent, StudentID: s.ID}
}

func (f *fixture) submit(t *testing.T, p auth.Principal, assignment models.AssignmentType) *models.Submission {
	t.Helper()
	sub, err := f.svc.Ledger.Submit(context.Background(), p, p.StudentID, assignment, "https://files.test/"+string(assignment)+".pdf")
	require.NoError(t, err)
	return sub
}

// unlock submits and approves the offer letter.
func (f *fixture) unlock(t *testing.T, p auth.Principal) {
	t.Helper()
	f.submit(t, p, models.AssignmentOfferLetter)
	_, err := f.svc.Gate.ApproveOfferLetter(context.Background(), f.admin, p.StudentID)
	require.NoError(t, err)
}

func (f *fixture) event(t *testing.T, company string, classes ...models.StudentClass) *models.PlacementEvent {
	t.Helper()
	e, err := f.svc.Events.Create(context.Background(), f.admin, &models.PlacementEvent{
		Title: company + " drive", Company: company, EligibleClasses: classes, IsOpen: true,
	})
	require.NoError(t, err)
	return e
}

func upload(content string) Upload {
	return Upload{Filename: "doc.pdf", Size: int64(len(content)), ContentType: "application/pdf", Body: strings.NewReader(content)}
}

// blockingStore holds every Put until its context is done.
type blockingStore struct {
	started chan struct{}
}

func (b *blockingStore) Put(ctx context.Context, _, _ string, body io.Reader, _ int64, _ string) (string, error) {
	close(b.started)
	<-ctx.Done()
	return "", ctx.Err()
}

func (b *blockingStore) Delete(context.Context, string, string) error { return nil }

type failingStore struct{ err error }

func (f failingStore) Put(context.Context, string, string, io.Reader, int64, string) (string, error) {
	return "", f.err
}

func (f failingStore) Delete(context.Context, string, string) error { return f.err }
