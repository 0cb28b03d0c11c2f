package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/service"
	"github.com/lumia-app/lumia/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []service.InvitationEmail
	err  error
}

func (m *recordingMailer) SendCircleInvitation(_ context.Context, email service.InvitationEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return m.err
}

func TestCircleCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	circles := service.NewCircleService(store, nil)

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")

	detail, err := circles.Create(ctx, alice, " Family ", "close relatives")
	require.NoError(t, err)
	assert.Equal(t, "Family", detail.Name)
	assert.True(t, detail.IsAdmin)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, alice.ID, detail.Members[0].UserID)
	assert.True(t, detail.Members[0].IsAdmin)

	list, err := circles.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsAdmin)

	_, err = circles.Get(ctx, bob, detail.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	long := make([]byte, model.MaxCircleDescription+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = circles.Create(ctx, alice, "Too long", string(long))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCircleUpdateRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	circles := service.NewCircleService(store, nil)

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")
	carol := testutil.CreateUser(t, store, "carol@example.com")

	circle, err := circles.Create(ctx, alice, "Friends", "")
	require.NoError(t, err)
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, bob.ID, false, model.Now()))

	name := "Best friends"
	_, err = circles.Update(ctx, bob, circle.ID, service.CircleUpdate{Name: &name})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = circles.Update(ctx, carol, circle.ID, service.CircleUpdate{Name: &name})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	desc := "people we like"
	updated, err := circles.Update(ctx, alice, circle.ID, service.CircleUpdate{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Best friends", updated.Name)
	assert.Equal(t, "people we like", updated.Description)
}

func TestCircleInvitationFlow(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	mailer := &recordingMailer{}
	circles := service.NewCircleService(store, mailer)

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")
	carol := testutil.CreateUser(t, store, "carol@example.com")

	circle, err := circles.Create(ctx, alice, "Family", "")
	require.NoError(t, err)

	inv, err := circles.Invite(ctx, alice, circle.ID, "  Bob@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", inv.Email)
	assert.Len(t, inv.Token, 64)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "bob@example.com", mailer.sent[0].To)
	assert.Equal(t, "Family", mailer.sent[0].CircleName)
	assert.Equal(t, inv.Token, mailer.sent[0].Token)

	_, err = circles.Invite(ctx, alice, circle.ID, "bob@example.com")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = circles.Invite(ctx, alice, circle.ID, "alice@example.com")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = circles.Invite(ctx, alice, circle.ID, "not-an-email")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = circles.Invite(ctx, bob, circle.ID, "carol@example.com")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	pending, err := circles.Invitations(ctx, bob)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Family", pending[0].CircleName)

	_, err = circles.AcceptInvitation(ctx, carol, inv.Token)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	joined, err := circles.AcceptInvitation(ctx, bob, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, circle.ID, joined.ID)

	detail, err := circles.Get(ctx, bob, circle.ID)
	require.NoError(t, err)
	assert.False(t, detail.IsAdmin)
	assert.Len(t, detail.Members, 2)
	assert.Empty(t, detail.Invitations)

	_, err = circles.AcceptInvitation(ctx, bob, inv.Token)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	pending, err = circles.Invitations(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCircleDeclineInvitation(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	circles := service.NewCircleService(store, &recordingMailer{err: errors.New("smtp down")})

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")

	circle, err := circles.Create(ctx, alice, "Family", "")
	require.NoError(t, err)

	inv, err := circles.Invite(ctx, alice, circle.ID, "bob@example.com")
	require.NoError(t, err, "delivery failures must not fail the invite")

	detail, err := circles.Get(ctx, alice, circle.ID)
	require.NoError(t, err)
	require.Len(t, detail.Invitations, 1)

	require.NoError(t, circles.DeclineInvitation(ctx, bob, inv.Token))

	_, err = circles.Get(ctx, bob, circle.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = circles.DeclineInvitation(ctx, bob, inv.Token)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCircleAdminsAndMembers(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	circles := service.NewCircleService(store, nil)

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")
	carol := testutil.CreateUser(t, store, "carol@example.com")

	circle, err := circles.Create(ctx, alice, "Team", "")
	require.NoError(t, err)
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, bob.ID, false, model.Now()))
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, carol.ID, false, model.Now()))

	err = circles.RemoveMember(ctx, alice, circle.ID, alice.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = circles.RemoveMember(ctx, bob, circle.ID, carol.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	err = circles.MakeAdmin(ctx, bob, circle.ID, bob.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, circles.MakeAdmin(ctx, alice, circle.ID, bob.ID))

	err = circles.MakeAdmin(ctx, alice, circle.ID, bob.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	stranger := testutil.CreateUser(t, store, "stranger@example.com")
	err = circles.MakeAdmin(ctx, alice, circle.ID, stranger.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, circles.RemoveMember(ctx, alice, circle.ID, alice.ID))
	require.NoError(t, circles.RemoveMember(ctx, carol, circle.ID, carol.ID))

	detail, err := circles.Get(ctx, bob, circle.ID)
	require.NoError(t, err)
	require.Len(t, detail.Members, 1)
	assert.True(t, detail.IsAdmin)

	err = circles.RemoveMember(ctx, bob, circle.ID, bob.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCircleAdminsRemovingEachOtherKeepOne(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	circles := service.NewCircleService(store, nil)

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")

	circle, err := circles.Create(ctx, alice, "Team", "")
	require.NoError(t, err)
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, bob.ID, true, model.Now()))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = circles.RemoveMember(ctx, alice, circle.ID, bob.ID)
	}()
	go func() {
		defer wg.Done()
		errs[1] = circles.RemoveMember(ctx, bob, circle.ID, alice.ID)
	}()
	wg.Wait()

	assert.False(t, errs[0] == nil && errs[1] == nil, "both removals succeeded")

	admins, err := store.Circles.LockAdmins(ctx, circle.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, admins)
}

func TestCircleDeleteUnsharesEverything(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	circles := service.NewCircleService(store, nil)
	albums := service.NewAlbumService(store)

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")

	circle, err := circles.Create(ctx, alice, "Family", "")
	require.NoError(t, err)
	other, err := circles.Create(ctx, alice, "Work", "")
	require.NoError(t, err)
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, bob.ID, false, model.Now()))

	a1, err := albums.Create(ctx, alice, "One")
	require.NoError(t, err)
	a2, err := albums.Create(ctx, alice, "Two")
	require.NoError(t, err)
	_, err = albums.Share(ctx, alice, a1.ID, []model.ID{circle.ID, other.ID})
	require.NoError(t, err)
	_, err = albums.Share(ctx, alice, a2.ID, []model.ID{circle.ID})
	require.NoError(t, err)

	file := testutil.CreateFile(t, store, alice.ID, time.Now())
	require.NoError(t, store.Files.SetCircles(ctx, file.ID, []model.ID{circle.ID}))

	shared, err := circles.Albums(ctx, bob, circle.ID)
	require.NoError(t, err)
	assert.Len(t, shared, 2)

	_, err = circles.Delete(ctx, bob, circle.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	result, err := circles.Delete(ctx, alice, circle.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.AffectedAlbums)
	assert.Equal(t, int64(1), result.AffectedFiles)

	view, err := albums.Get(ctx, alice, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{other.ID}, view.CircleIDs)

	circleIDs, err := store.Files.CircleIDs(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, circleIDs)

	_, err = circles.Get(ctx, alice, circle.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
