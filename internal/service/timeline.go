package service

import (
	"context"
	"sort"
	"time"

	"github.com/lumia-app/lumia/internal/access"
	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
)

const (
	TimelinePageSize   = 20
	timelineFileBatch  = 50
	timelineAlbumBatch = 10
	albumPreviewSize   = 4
	unknownOwnerName   = "Unknown User"
)

type TimelineService struct {
	store *repository.Store
}

func NewTimelineService(store *repository.Store) *TimelineService {
	return &TimelineService{store: store}
}

// Timeline returns one page of a circle's feed: files and albums shared
// with the circle, newest first, with consecutive items of the same owner
// and type grouped. Pass the returned NextCursor to get the next page.
func (s *TimelineService) Timeline(ctx context.Context, user *model.User, circleID model.ID, cursor *model.TimelineCursor) (*model.TimelinePage, error) {
	d, err := access.For(s.store).CircleMember(ctx, user, circleID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check circle membership")
	}
	if err := d.Err(true, "circle"); err != nil {
		return nil, err
	}

	after := model.TimelineCursor{At: model.Now().Add(time.Hour)}
	if cursor != nil {
		after = model.TimelineCursor{At: cursor.At.UTC(), ID: cursor.ID}
	}

	files, err := s.store.Files.SharedWithCircle(ctx, circleID, after, timelineFileBatch)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load circle files")
	}
	albums, err := s.store.Albums.SharedWithCircle(ctx, circleID, after, timelineAlbumBatch)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load circle albums")
	}

	items := make([]model.TimelineItem, 0, len(files)+len(albums))
	for _, f := range files {
		items = append(items, fileItem(f))
	}
	for _, a := range albums {
		item, err := s.albumItem(ctx, a)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	// A full batch means older rows of that source were not fetched. Items
	// past its last row could be out of order with them, so they wait for
	// the next page.
	truncated := len(files) == timelineFileBatch || len(albums) == timelineAlbumBatch
	var cutoff *model.TimelineCursor
	if len(files) == timelineFileBatch {
		c := fileItem(files[len(files)-1]).Cursor()
		cutoff = &c
	}
	if len(albums) == timelineAlbumBatch {
		c := model.TimelineCursor{At: albums[len(albums)-1].ActivityAt(), ID: albums[len(albums)-1].ID}
		if cutoff == nil || cutoff.Follows(c) {
			cutoff = &c
		}
	}

	sortTimeline(items)
	if cutoff != nil {
		items = keepThrough(items, *cutoff)
	}

	groups := GroupTimeline(items)
	more := truncated
	if len(groups) > TimelinePageSize {
		groups = groups[:TimelinePageSize]
		more = true
	}

	if err := s.attachOwners(ctx, groups); err != nil {
		return nil, err
	}

	page := &model.TimelinePage{Entries: groups}
	if more && len(groups) > 0 {
		last := groups[len(groups)-1].Items
		next := last[len(last)-1].Cursor()
		page.NextCursor = &next
	}
	return page, nil
}

// GroupTimeline folds a timestamp-ordered item stream into entries of
// consecutive items sharing owner and type. An entry's timestamp is the
// newest of its items.
func GroupTimeline(items []model.TimelineItem) []model.TimelineEntry {
	groups := []model.TimelineEntry{}
	for _, item := range items {
		n := len(groups)
		if n > 0 && groups[n-1].OwnerID == item.OwnerID && groups[n-1].Type == item.Type {
			g := &groups[n-1]
			g.Items = append(g.Items, item)
			if item.Timestamp.After(g.Timestamp) {
				g.Timestamp = item.Timestamp
			}
			continue
		}
		groups = append(groups, model.TimelineEntry{
			Type:      item.Type,
			OwnerID:   item.OwnerID,
			Timestamp: item.Timestamp,
			Items:     []model.TimelineItem{item},
		})
	}
	return groups
}

func (s *TimelineService) albumItem(ctx context.Context, a *model.Album) (model.TimelineItem, error) {
	preview, err := s.store.Albums.Files(ctx, a.ID, albumPreviewSize)
	if err != nil {
		return model.TimelineItem{}, apperr.Internal(err, "failed to load album preview")
	}

	ta := &model.TimelineAlbum{Album: *a, Preview: make([]model.File, 0, len(preview))}
	for _, f := range preview {
		ta.Preview = append(ta.Preview, *f)
	}
	if ta.ThumbnailID == nil && len(ta.Preview) > 0 {
		id := ta.Preview[0].ID
		ta.ThumbnailID = &id
	}

	return model.TimelineItem{
		Type:      model.ItemAlbum,
		OwnerID:   a.UserID,
		Timestamp: a.ActivityAt(),
		Album:     ta,
	}, nil
}

func (s *TimelineService) attachOwners(ctx context.Context, groups []model.TimelineEntry) error {
	ids := make([]model.ID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.OwnerID)
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	users, err := s.store.Users.ByIDs(ctx, ids)
	if err != nil {
		return apperr.Internal(err, "failed to load timeline owners")
	}
	names := make(map[model.ID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}

	for i := range groups {
		name, ok := names[groups[i].OwnerID]
		if !ok {
			name = unknownOwnerName
		}
		groups[i].OwnerName = name
	}
	return nil
}

func fileItem(f *model.File) model.TimelineItem {
	return model.TimelineItem{
		Type:      model.ItemFile,
		OwnerID:   f.UserID,
		Timestamp: fileTime(f),
		File:      f,
	}
}

func fileTime(f *model.File) time.Time {
	if !f.UploadedAt.IsZero() {
		return f.UploadedAt
	}
	return f.CreatedAt
}

// sortTimeline orders items by timestamp then id, newest first. Ties on
// the timestamp still get a total order, which the cursor relies on.
func sortTimeline(items []model.TimelineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[j].Cursor().Follows(items[i].Cursor())
	})
}

// keepThrough drops items that follow cutoff from a sorted stream.
func keepThrough(items []model.TimelineItem, cutoff model.TimelineCursor) []model.TimelineItem {
	for i, item := range items {
		if item.Cursor().Follows(cutoff) {
			return items[:i]
		}
	}
	return items
}
