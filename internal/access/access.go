// Package access decides who may read or change files, albums and circles.
//
// Reads are granted by ownership or by sharing through a circle the user
// belongs to. Writes on files and albums are granted by ownership only;
// circle membership never grants write. Circle management requires the
// admin role.
package access

import (
	"context"
	"fmt"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
)

type Reason string

const (
	ReasonOwner       Reason = "owner"
	ReasonFileShared  Reason = "file shared with a circle you belong to"
	ReasonAlbumShared Reason = "in an album shared with a circle you belong to"
	ReasonAdmin       Reason = "circle admin"
	ReasonMember      Reason = "circle member"

	ReasonAnonymous  Reason = "not signed in"
	ReasonNotShared  Reason = "not shared with you"
	ReasonNotOwner   Reason = "only the owner can change this"
	ReasonNotMember  Reason = "not a member of this circle"
	ReasonNotAdmin   Reason = "circle admin required"
	ReasonForeignSet Reason = "you can only share with circles you belong to"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow(r Reason) Decision { return Decision{Allowed: true, Reason: r} }
func deny(r Reason) Decision  { return Decision{Allowed: false, Reason: r} }

// Err converts a denial into a caller-facing error. When hide is set the
// denial is reported as NotFound so the resource's existence is not leaked.
func (d Decision) Err(hide bool, what string) error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonAnonymous {
		return apperr.Unauthorized("authentication required")
	}
	if hide {
		return apperr.NotFound("%s not found", what)
	}
	return apperr.Forbidden("%s", d.Reason)
}

type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleAdmin
)

// Resolver answers access questions against one repository store. Use For
// with a transactional store to check inside a transaction.
type Resolver struct {
	files   repository.FileRepository
	albums  repository.AlbumRepository
	circles repository.CircleRepository
}

func NewResolver(files repository.FileRepository, albums repository.AlbumRepository, circles repository.CircleRepository) *Resolver {
	return &Resolver{files: files, albums: albums, circles: circles}
}

func For(s *repository.Store) *Resolver {
	return NewResolver(s.Files, s.Albums, s.Circles)
}

// CanReadFile grants the owner, members of a circle the file is shared
// with, and members of a circle sharing any album that contains the file.
func (r *Resolver) CanReadFile(ctx context.Context, user *model.User, file *model.File) (Decision, error) {
	if user == nil {
		return deny(ReasonAnonymous), nil
	}
	if file.UserID == user.ID {
		return allow(ReasonOwner), nil
	}

	mine, err := r.circles.IDsForUser(ctx, user.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load user circles: %w", err)
	}
	if len(mine) == 0 {
		return deny(ReasonNotShared), nil
	}

	direct := file.CircleIDs
	if direct == nil {
		direct, err = r.files.CircleIDs(ctx, file.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to load file circles: %w", err)
		}
	}
	if Intersects(direct, mine) {
		return allow(ReasonFileShared), nil
	}

	viaAlbums, err := r.albums.CircleIDsForFile(ctx, file.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load album circles: %w", err)
	}
	if Intersects(viaAlbums, mine) {
		return allow(ReasonAlbumShared), nil
	}

	return deny(ReasonNotShared), nil
}

// CanReadAlbum grants the owner and members of any circle the album is
// shared with. album.CircleIDs must be loaded.
func (r *Resolver) CanReadAlbum(ctx context.Context, user *model.User, album *model.Album) (Decision, error) {
	if user == nil {
		return deny(ReasonAnonymous), nil
	}
	if album.UserID == user.ID {
		return allow(ReasonOwner), nil
	}
	if len(album.CircleIDs) == 0 {
		return deny(ReasonNotShared), nil
	}

	n, err := r.circles.CountMemberships(ctx, user.ID, album.CircleIDs)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check circle membership: %w", err)
	}
	if n > 0 {
		return allow(ReasonAlbumShared), nil
	}
	return deny(ReasonNotShared), nil
}

// CanWriteAlbum grants the owner only.
func CanWriteAlbum(user *model.User, album *model.Album) Decision {
	if user == nil {
		return deny(ReasonAnonymous)
	}
	if album.UserID == user.ID {
		return allow(ReasonOwner)
	}
	return deny(ReasonNotOwner)
}

// CanWriteFile grants the owner only.
func CanWriteFile(user *model.User, file *model.File) Decision {
	if user == nil {
		return deny(ReasonAnonymous)
	}
	if file.UserID == user.ID {
		return allow(ReasonOwner)
	}
	return deny(ReasonNotOwner)
}

// CircleRole returns the user's role in the circle.
func (r *Resolver) CircleRole(ctx context.Context, user *model.User, circleID model.ID) (Role, error) {
	if user == nil {
		return RoleNone, nil
	}

	m, err := r.circles.Member(ctx, circleID, user.ID)
	if err == repository.ErrMemberNotFound {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, fmt.Errorf("failed to load membership: %w", err)
	}
	if m.IsAdmin {
		return RoleAdmin, nil
	}
	return RoleMember, nil
}

// CircleMember grants members and admins.
func (r *Resolver) CircleMember(ctx context.Context, user *model.User, circleID model.ID) (Decision, error) {
	if user == nil {
		return deny(ReasonAnonymous), nil
	}
	role, err := r.CircleRole(ctx, user, circleID)
	if err != nil {
		return Decision{}, err
	}
	switch role {
	case RoleAdmin:
		return allow(ReasonAdmin), nil
	case RoleMember:
		return allow(ReasonMember), nil
	}
	return deny(ReasonNotMember), nil
}

// CircleAdmin grants admins. A plain member is denied with ReasonNotAdmin,
// a stranger with ReasonNotMember so callers can hide the circle.
func (r *Resolver) CircleAdmin(ctx context.Context, user *model.User, circleID model.ID) (Decision, error) {
	if user == nil {
		return deny(ReasonAnonymous), nil
	}
	role, err := r.CircleRole(ctx, user, circleID)
	if err != nil {
		return Decision{}, err
	}
	switch role {
	case RoleAdmin:
		return allow(ReasonAdmin), nil
	case RoleMember:
		return deny(ReasonNotAdmin), nil
	}
	return deny(ReasonNotMember), nil
}

// CanShareWith grants when the user belongs to every listed circle.
// An empty list always passes: unsharing needs no membership.
func (r *Resolver) CanShareWith(ctx context.Context, user *model.User, circleIDs []model.ID) (Decision, error) {
	if user == nil {
		return deny(ReasonAnonymous), nil
	}
	if len(circleIDs) == 0 {
		return allow(ReasonOwner), nil
	}

	n, err := r.circles.CountMemberships(ctx, user.ID, circleIDs)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check circle membership: %w", err)
	}
	if n != len(circleIDs) {
		return deny(ReasonForeignSet), nil
	}
	return allow(ReasonMember), nil
}

// Intersects reports whether a and b share an element.
func Intersects(a, b []model.ID) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) == 0 {
		return false
	}

	set := make(map[model.ID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
