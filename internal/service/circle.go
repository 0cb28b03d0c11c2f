package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumia-app/lumia/internal/access"
	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
	"github.com/lumia-app/lumia/internal/validation"
)

const (
	invitationTokenBytes = 32
	maxCircleAlbums      = 500
)

// InvitationMailer delivers circle invitations.
type InvitationMailer interface {
	SendCircleInvitation(ctx context.Context, email InvitationEmail) error
}

type InvitationEmail struct {
	To          string
	InviterName string
	CircleName  string
	Token       string

	// Markdown, as written by the circle's admins
	CircleDescription string
}

type CircleService struct {
	store  *repository.Store
	mailer InvitationMailer
}

func NewCircleService(store *repository.Store, mailer InvitationMailer) *CircleService {
	return &CircleService{store: store, mailer: mailer}
}

type CircleUpdate struct {
	Name        *string
	Description *string
}

type DeleteCircleResult struct {
	AffectedAlbums int64 `json:"affectedAlbums"`
	AffectedFiles  int64 `json:"affectedFiles"`
}

// Create makes a circle with the creator as its only member and admin.
func (s *CircleService) Create(ctx context.Context, user *model.User, name, description string) (*model.CircleDetail, error) {
	name = validation.NormalizeName(name)
	if err := validation.ValidateName("circle", name); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	description = validation.NormalizeName(description)
	if err := validation.ValidateDescription(description); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	now := model.Now()
	circle := &model.Circle{
		ID:          model.NewID(),
		Name:        name,
		Description: description,
		CreatedBy:   user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if err := tx.Circles.Create(ctx, circle); err != nil {
			return apperr.Internal(err, "failed to create circle")
		}
		if err := tx.Circles.AddMember(ctx, circle.ID, user.ID, true, now); err != nil {
			return apperr.Internal(err, "failed to add circle creator")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("circle created", "circle_id", circle.ID, "user_id", user.ID)
	return s.Get(ctx, user, circle.ID)
}

// List returns the circles the user belongs to with their role.
func (s *CircleService) List(ctx context.Context, user *model.User) ([]*model.CircleSummary, error) {
	circles, err := s.store.Circles.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list circles")
	}
	return circles, nil
}

// Get returns the member view of a circle. Pending invitations are only
// included for admins.
func (s *CircleService) Get(ctx context.Context, user *model.User, circleID model.ID) (*model.CircleDetail, error) {
	role, err := s.role(ctx, s.store, user, circleID)
	if err != nil {
		return nil, err
	}
	if role == access.RoleNone {
		return nil, apperr.NotFound("circle not found")
	}

	circle, err := s.load(ctx, s.store, circleID)
	if err != nil {
		return nil, err
	}

	members, err := s.store.Circles.Members(ctx, circleID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load circle members")
	}

	detail := &model.CircleDetail{
		Circle:  *circle,
		IsAdmin: role == access.RoleAdmin,
		Members: members,
	}

	if detail.IsAdmin {
		detail.Invitations, err = s.store.Circles.Invitations(ctx, circleID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load invitations")
		}
	}

	return detail, nil
}

func (s *CircleService) Update(ctx context.Context, user *model.User, circleID model.ID, upd CircleUpdate) (*model.Circle, error) {
	var circle *model.Circle
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if err := s.requireAdmin(ctx, tx, user, circleID); err != nil {
			return err
		}

		var err error
		circle, err = s.load(ctx, tx, circleID)
		if err != nil {
			return err
		}

		if upd.Name != nil {
			name := validation.NormalizeName(*upd.Name)
			if err := validation.ValidateName("circle", name); err != nil {
				return apperr.Validation("%s", err.Error())
			}
			circle.Name = name
		}
		if upd.Description != nil {
			description := validation.NormalizeName(*upd.Description)
			if err := validation.ValidateDescription(description); err != nil {
				return apperr.Validation("%s", err.Error())
			}
			circle.Description = description
		}

		circle.UpdatedAt = model.Now()
		if err := tx.Circles.Update(ctx, circle); err != nil {
			return apperr.Internal(err, "failed to update circle")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return circle, nil
}

// Invite records a pending invitation for email and mails the token.
// A failed delivery is logged; the invitation stays valid.
func (s *CircleService) Invite(ctx context.Context, user *model.User, circleID model.ID, email string) (*model.Invitation, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	token, err := newInvitationToken()
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate invitation token")
	}

	inv := &model.Invitation{
		Token:     token,
		CircleID:  circleID,
		Email:     email,
		InvitedBy: user.ID,
		InvitedAt: model.Now(),
	}

	var description string
	err = s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if err := s.requireAdmin(ctx, tx, user, circleID); err != nil {
			return err
		}

		circle, err := s.load(ctx, tx, circleID)
		if err != nil {
			return err
		}
		inv.CircleName = circle.Name
		description = circle.Description

		member, err := tx.Circles.IsMemberEmail(ctx, circleID, email)
		if err != nil {
			return apperr.Internal(err, "failed to check membership")
		}
		if member {
			return apperr.Conflict("user is already a member of this circle")
		}

		err = tx.Circles.CreateInvitation(ctx, inv)
		if errors.Is(err, repository.ErrInvitationExists) {
			return apperr.Conflict("an invitation is already pending for this email")
		}
		if err != nil {
			return apperr.Internal(err, "failed to create invitation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("circle invitation created", "circle_id", circleID, "invited_by", user.ID)

	if s.mailer != nil {
		err = s.mailer.SendCircleInvitation(ctx, InvitationEmail{
			To:                email,
			InviterName:       user.DisplayName(),
			CircleName:        inv.CircleName,
			CircleDescription: description,
			Token:             token,
		})
		if err != nil {
			slog.Warn("failed to send invitation email", "error", err, "circle_id", circleID)
		}
	}

	return inv, nil
}

// Invitations lists pending invitations addressed to the user's email.
func (s *CircleService) Invitations(ctx context.Context, user *model.User) ([]model.Invitation, error) {
	invs, err := s.store.Circles.InvitationsForEmail(ctx, validation.NormalizeEmail(user.Email))
	if err != nil {
		return nil, apperr.Internal(err, "failed to load invitations")
	}
	return invs, nil
}

// AcceptInvitation consumes the invitation and adds the user to the circle.
func (s *CircleService) AcceptInvitation(ctx context.Context, user *model.User, token string) (*model.Circle, error) {
	var circle *model.Circle
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		inv, err := s.invitationFor(ctx, tx, user, token)
		if err != nil {
			return err
		}

		err = tx.Circles.AddMember(ctx, inv.CircleID, user.ID, false, model.Now())
		if err != nil && !errors.Is(err, repository.ErrAlreadyMember) {
			return apperr.Internal(err, "failed to join circle")
		}

		if err := tx.Circles.DeleteInvitation(ctx, token); err != nil {
			return apperr.Internal(err, "failed to consume invitation")
		}

		circle, err = s.load(ctx, tx, inv.CircleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("circle invitation accepted", "circle_id", circle.ID, "user_id", user.ID)
	return circle, nil
}

// DeclineInvitation consumes the invitation without joining.
func (s *CircleService) DeclineInvitation(ctx context.Context, user *model.User, token string) error {
	return s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if _, err := s.invitationFor(ctx, tx, user, token); err != nil {
			return err
		}
		if err := tx.Circles.DeleteInvitation(ctx, token); err != nil {
			return apperr.Internal(err, "failed to consume invitation")
		}
		return nil
	})
}

func (s *CircleService) MakeAdmin(ctx context.Context, user *model.User, circleID, targetID model.ID) error {
	return s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if err := s.requireAdmin(ctx, tx, user, circleID); err != nil {
			return err
		}

		target, err := tx.Circles.Member(ctx, circleID, targetID)
		if errors.Is(err, repository.ErrMemberNotFound) {
			return apperr.NotFound("user is not a member of this circle")
		}
		if err != nil {
			return apperr.Internal(err, "failed to load member")
		}
		if target.IsAdmin {
			return apperr.Conflict("user is already an admin")
		}

		if err := tx.Circles.SetAdmin(ctx, circleID, targetID, true); err != nil {
			return apperr.Internal(err, "failed to promote member")
		}
		return nil
	})
}

// RemoveMember lets an admin remove anyone and a member remove themself.
// The last admin can never be removed.
func (s *CircleService) RemoveMember(ctx context.Context, user *model.User, circleID, targetID model.ID) error {
	return s.store.WithinTx(ctx, func(tx *repository.Store) error {
		// Taken first so two admins removing each other cannot both pass
		// the last-admin check.
		admins, err := tx.Circles.LockAdmins(ctx, circleID)
		if err != nil {
			return apperr.Internal(err, "failed to load admins")
		}

		role, err := s.role(ctx, tx, user, circleID)
		if err != nil {
			return err
		}
		if role == access.RoleNone {
			return apperr.NotFound("circle not found")
		}
		if targetID != user.ID && role != access.RoleAdmin {
			return apperr.Forbidden("only admins can remove other members")
		}

		target, err := tx.Circles.Member(ctx, circleID, targetID)
		if errors.Is(err, repository.ErrMemberNotFound) {
			return apperr.NotFound("user is not a member of this circle")
		}
		if err != nil {
			return apperr.Internal(err, "failed to load member")
		}

		if target.IsAdmin && len(admins) <= 1 {
			return apperr.Conflict("cannot remove the last admin")
		}

		if err := tx.Circles.RemoveMember(ctx, circleID, targetID); err != nil {
			return apperr.Internal(err, "failed to remove member")
		}
		return nil
	})
}

// Delete removes the circle and pulls it from every album and file share
// list in the same transaction.
func (s *CircleService) Delete(ctx context.Context, user *model.User, circleID model.ID) (*DeleteCircleResult, error) {
	result := &DeleteCircleResult{}
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if err := s.requireAdmin(ctx, tx, user, circleID); err != nil {
			return err
		}

		var err error
		result.AffectedAlbums, err = tx.Albums.RemoveCircleEverywhere(ctx, circleID)
		if err != nil {
			return apperr.Internal(err, "failed to unshare albums")
		}
		result.AffectedFiles, err = tx.Files.RemoveCircleEverywhere(ctx, circleID)
		if err != nil {
			return apperr.Internal(err, "failed to unshare files")
		}

		if err := tx.Circles.Delete(ctx, circleID); err != nil {
			return apperr.Internal(err, "failed to delete circle")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("circle deleted", "circle_id", circleID, "affected_albums", result.AffectedAlbums, "affected_files", result.AffectedFiles)
	return result, nil
}

// Albums lists albums shared with the circle, most recently active first.
func (s *CircleService) Albums(ctx context.Context, user *model.User, circleID model.ID) ([]*model.Album, error) {
	role, err := s.role(ctx, s.store, user, circleID)
	if err != nil {
		return nil, err
	}
	if role == access.RoleNone {
		return nil, apperr.NotFound("circle not found")
	}

	albums, err := s.store.Albums.SharedWithCircle(ctx, circleID, model.TimelineCursor{At: model.Now().Add(24 * time.Hour)}, maxCircleAlbums)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load circle albums")
	}
	if albums == nil {
		albums = []*model.Album{}
	}
	return albums, nil
}

func (s *CircleService) load(ctx context.Context, store *repository.Store, circleID model.ID) (*model.Circle, error) {
	circle, err := store.Circles.ByID(ctx, circleID)
	if errors.Is(err, repository.ErrCircleNotFound) {
		return nil, apperr.NotFound("circle not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load circle")
	}
	return circle, nil
}

func (s *CircleService) role(ctx context.Context, store *repository.Store, user *model.User, circleID model.ID) (access.Role, error) {
	role, err := access.For(store).CircleRole(ctx, user, circleID)
	if err != nil {
		return access.RoleNone, apperr.Internal(err, "failed to check circle membership")
	}
	return role, nil
}

// requireAdmin hides the circle from strangers and forbids plain members.
func (s *CircleService) requireAdmin(ctx context.Context, store *repository.Store, user *model.User, circleID model.ID) error {
	d, err := access.For(store).CircleAdmin(ctx, user, circleID)
	if err != nil {
		return apperr.Internal(err, "failed to check circle role")
	}
	return d.Err(d.Reason == access.ReasonNotMember, "circle")
}

// invitationFor loads the invitation and checks it is addressed to user.
func (s *CircleService) invitationFor(ctx context.Context, store *repository.Store, user *model.User, token string) (*model.Invitation, error) {
	inv, err := store.Circles.InvitationByToken(ctx, token)
	if errors.Is(err, repository.ErrInvitationNotFound) {
		return nil, apperr.NotFound("invitation not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load invitation")
	}

	if inv.Email != validation.NormalizeEmail(user.Email) {
		return nil, apperr.Forbidden("this invitation was sent to a different email address")
	}
	return inv, nil
}

func newInvitationToken() (string, error) {
	b := make([]byte, invitationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
