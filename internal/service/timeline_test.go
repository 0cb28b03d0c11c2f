package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/service"
	"github.com/lumia-app/lumia/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupTimeline(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(n int) time.Time { return base.Add(time.Duration(n) * time.Minute) }

	items := []model.TimelineItem{
		{Type: model.ItemFile, OwnerID: "a", Timestamp: at(5)},
		{Type: model.ItemFile, OwnerID: "a", Timestamp: at(4)},
		{Type: model.ItemAlbum, OwnerID: "b", Timestamp: at(3)},
	}

	groups := service.GroupTimeline(items)
	require.Len(t, groups, 2)

	assert.Equal(t, model.ID("a"), groups[0].OwnerID)
	assert.Equal(t, model.ItemFile, groups[0].Type)
	assert.Equal(t, at(5), groups[0].Timestamp)
	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, at(4), groups[0].Items[1].Timestamp)

	assert.Equal(t, model.ID("b"), groups[1].OwnerID)
	assert.Equal(t, model.ItemAlbum, groups[1].Type)
	assert.Len(t, groups[1].Items, 1)

	assert.Empty(t, service.GroupTimeline(nil))
}

func TestTimelineMergesFilesAndAlbums(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	circles := service.NewCircleService(store, nil)
	timeline := service.NewTimelineService(store)

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")
	stranger := testutil.CreateUser(t, store, "eve@example.com")

	circle, err := circles.Create(ctx, alice, "Family", "")
	require.NoError(t, err)
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, bob.ID, false, model.Now()))

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f5 := testutil.CreateFile(t, store, alice.ID, base.Add(5*time.Minute))
	f4 := testutil.CreateFile(t, store, alice.ID, base.Add(4*time.Minute))
	inAlbum := testutil.CreateFile(t, store, bob.ID, base.Add(time.Minute))
	require.NoError(t, store.Files.SetCircles(ctx, f5.ID, []model.ID{circle.ID}))
	require.NoError(t, store.Files.SetCircles(ctx, f4.ID, []model.ID{circle.ID}))

	albumAt := base.Add(3 * time.Minute)
	album := &model.Album{ID: model.NewID(), UserID: bob.ID, Name: "Bob's", CreatedAt: albumAt, UpdatedAt: albumAt}
	require.NoError(t, store.Albums.Create(ctx, album))
	_, err = store.Albums.AddFiles(ctx, album.ID, []model.ID{inAlbum.ID}, albumAt)
	require.NoError(t, err)
	require.NoError(t, store.Albums.SetCircles(ctx, album.ID, []model.ID{circle.ID}))

	page, err := timeline.Timeline(ctx, bob, circle.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, page.NextCursor)
	require.Len(t, page.Entries, 2)

	first := page.Entries[0]
	assert.Equal(t, model.ItemFile, first.Type)
	assert.Equal(t, alice.ID, first.OwnerID)
	assert.Equal(t, "alice", first.OwnerName)
	require.Len(t, first.Items, 2)
	assert.Equal(t, f5.ID, first.Items[0].File.ID)
	assert.Equal(t, f4.ID, first.Items[1].File.ID)

	second := page.Entries[1]
	assert.Equal(t, model.ItemAlbum, second.Type)
	assert.Equal(t, "bob", second.OwnerName)
	require.Len(t, second.Items, 1)
	shown := second.Items[0].Album
	require.NotNil(t, shown)
	require.Len(t, shown.Preview, 1)
	require.NotNil(t, shown.ThumbnailID, "thumbnail falls back to the first preview file")
	assert.Equal(t, inAlbum.ID, *shown.ThumbnailID)

	_, err = timeline.Timeline(ctx, stranger, circle.ID, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestTimelinePaginatesGroups(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	circles := service.NewCircleService(store, nil)
	timeline := service.NewTimelineService(store)

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")

	circle, err := circles.Create(ctx, alice, "Family", "")
	require.NoError(t, err)
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, bob.ID, false, model.Now()))

	// Alternating owners make every file its own group.
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	total := service.TimelinePageSize + 5
	for i := 0; i < total; i++ {
		owner := alice.ID
		if i%2 == 1 {
			owner = bob.ID
		}
		f := testutil.CreateFile(t, store, owner, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Files.SetCircles(ctx, f.ID, []model.ID{circle.ID}))
	}

	page, err := timeline.Timeline(ctx, alice, circle.ID, nil)
	require.NoError(t, err)
	require.Len(t, page.Entries, service.TimelinePageSize)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, base.Add(time.Duration(total-service.TimelinePageSize)*time.Minute), page.NextCursor.At.UTC())

	next, err := timeline.Timeline(ctx, alice, circle.ID, page.NextCursor)
	require.NoError(t, err)
	assert.Len(t, next.Entries, total-service.TimelinePageSize)
	assert.Nil(t, next.NextCursor)
	assert.Equal(t, base, next.Entries[len(next.Entries)-1].Timestamp.UTC())
}

func TestTimelinePagesKeepTiedItems(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		count int
		at    func(i int) time.Time
	}{
		{
			// Descending, files 5 and 4 sit on either side of the first page cut.
			name:  "tie at page boundary",
			count: service.TimelinePageSize + 5,
			at: func(i int) time.Time {
				if i == 4 {
					i = 5
				}
				return base.Add(time.Duration(i) * time.Minute)
			},
		},
		{
			name:  "tie wider than a fetch batch",
			count: 60,
			at:    func(int) time.Time { return base },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := testutil.NewStore(t)
			circles := service.NewCircleService(store, nil)
			timeline := service.NewTimelineService(store)

			owners := []*model.User{
				testutil.CreateUser(t, store, "alice@example.com"),
				testutil.CreateUser(t, store, "bob@example.com"),
				testutil.CreateUser(t, store, "carol@example.com"),
			}
			circle, err := circles.Create(ctx, owners[0], "Family", "")
			require.NoError(t, err)
			for _, u := range owners[1:] {
				require.NoError(t, store.Circles.AddMember(ctx, circle.ID, u.ID, false, model.Now()))
			}

			for i := 0; i < tt.count; i++ {
				f := testutil.CreateFile(t, store, owners[i%len(owners)].ID, tt.at(i))
				require.NoError(t, store.Files.SetCircles(ctx, f.ID, []model.ID{circle.ID}))
			}

			seen := map[model.ID]int{}
			var cursor *model.TimelineCursor
			for pages := 0; ; pages++ {
				require.Less(t, pages, tt.count, "timeline did not terminate")

				page, err := timeline.Timeline(ctx, owners[1], circle.ID, cursor)
				require.NoError(t, err)
				for _, entry := range page.Entries {
					for _, item := range entry.Items {
						seen[item.ItemID()]++
					}
				}
				if page.NextCursor == nil {
					break
				}
				cursor = page.NextCursor
			}

			assert.Len(t, seen, tt.count)
			for id, n := range seen {
				assert.Equal(t, 1, n, "item %s shown %d times", id, n)
			}
		})
	}
}
