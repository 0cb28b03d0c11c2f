package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumia-app/lumia/internal/model"
)

var (
	ErrCircleNotFound     = errors.New("circle not found")
	ErrMemberNotFound     = errors.New("member not found")
	ErrAlreadyMember      = errors.New("user is already a member")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExists   = errors.New("invitation already pending")
)

type CircleRepository interface {
	Create(ctx context.Context, circle *model.Circle) error
	ByID(ctx context.Context, id model.ID) (*model.Circle, error)
	ListForUser(ctx context.Context, userID model.ID) ([]*model.CircleSummary, error)
	Update(ctx context.Context, circle *model.Circle) error
	Delete(ctx context.Context, id model.ID) error

	AddMember(ctx context.Context, circleID, userID model.ID, isAdmin bool, at time.Time) error
	Member(ctx context.Context, circleID, userID model.ID) (*model.Member, error)
	Members(ctx context.Context, circleID model.ID) ([]model.Member, error)
	IsMemberEmail(ctx context.Context, circleID model.ID, email string) (bool, error)
	RemoveMember(ctx context.Context, circleID, userID model.ID) error
	SetAdmin(ctx context.Context, circleID, userID model.ID, isAdmin bool) error
	LockAdmins(ctx context.Context, circleID model.ID) ([]model.ID, error)
	IDsForUser(ctx context.Context, userID model.ID) ([]model.ID, error)
	CountMemberships(ctx context.Context, userID model.ID, circleIDs []model.ID) (int, error)

	CreateInvitation(ctx context.Context, inv *model.Invitation) error
	InvitationByToken(ctx context.Context, token string) (*model.Invitation, error)
	Invitations(ctx context.Context, circleID model.ID) ([]model.Invitation, error)
	InvitationsForEmail(ctx context.Context, email string) ([]model.Invitation, error)
	DeleteInvitation(ctx context.Context, token string) error
}

type circleRepository struct {
	db Querier
}

func NewCircleRepository(db Querier) CircleRepository {
	return &circleRepository{db: db}
}

const circleColumns = `c.id, c.name, c.description, c.created_by, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM circle_members cm WHERE cm.circle_id = c.id) AS member_count`

func (r *circleRepository) Create(ctx context.Context, circle *model.Circle) error {
	query := `INSERT INTO circles (id, name, description, created_by, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		circle.ID,
		circle.Name,
		circle.Description,
		circle.CreatedBy,
		circle.CreatedAt,
		circle.UpdatedAt,
	)
	return err
}

func (r *circleRepository) ByID(ctx context.Context, id model.ID) (*model.Circle, error) {
	circle := &model.Circle{}
	query := `SELECT ` + circleColumns + ` FROM circles c WHERE c.id = $1`

	err := r.db.GetContext(ctx, circle, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrCircleNotFound
	}
	if err != nil {
		return nil, err
	}

	return circle, nil
}

func (r *circleRepository) ListForUser(ctx context.Context, userID model.ID) ([]*model.CircleSummary, error) {
	circles := []*model.CircleSummary{}
	query := `SELECT ` + circleColumns + `, m.is_admin FROM circles c
	          JOIN circle_members m ON m.circle_id = c.id
	          WHERE m.user_id = $1
	          ORDER BY c.created_at DESC, c.id DESC`

	err := r.db.SelectContext(ctx, &circles, query, userID)
	if err != nil {
		return nil, err
	}

	return circles, nil
}

func (r *circleRepository) Update(ctx context.Context, circle *model.Circle) error {
	query := `UPDATE circles SET name = $1, description = $2, updated_at = $3 WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, circle.Name, circle.Description, circle.UpdatedAt, circle.ID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrCircleNotFound)
}

// Delete removes the circle with its members and pending invitations.
// Share rows pointing at the circle are removed by the album and file
// repositories in the same transaction.
func (r *circleRepository) Delete(ctx context.Context, id model.ID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM circle_invitations WHERE circle_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM circle_members WHERE circle_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM circles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, ErrCircleNotFound)
}

func (r *circleRepository) AddMember(ctx context.Context, circleID, userID model.ID, isAdmin bool, at time.Time) error {
	query := `INSERT INTO circle_members (circle_id, user_id, is_admin, joined_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, circleID, userID, isAdmin, at)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyMember
		}
		return err
	}
	return nil
}

const memberColumns = `m.circle_id, m.user_id, m.is_admin, m.joined_at,
	COALESCE(u.name, '') AS name, COALESCE(u.email, '') AS email, COALESCE(u.picture, '') AS picture`

func (r *circleRepository) Member(ctx context.Context, circleID, userID model.ID) (*model.Member, error) {
	member := &model.Member{}
	query := `SELECT ` + memberColumns + ` FROM circle_members m
	          LEFT JOIN users u ON u.id = m.user_id
	          WHERE m.circle_id = $1 AND m.user_id = $2`

	err := r.db.GetContext(ctx, member, query, circleID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	return member, nil
}

func (r *circleRepository) Members(ctx context.Context, circleID model.ID) ([]model.Member, error) {
	members := []model.Member{}
	query := `SELECT ` + memberColumns + ` FROM circle_members m
	          LEFT JOIN users u ON u.id = m.user_id
	          WHERE m.circle_id = $1
	          ORDER BY m.joined_at ASC, m.user_id ASC`

	err := r.db.SelectContext(ctx, &members, query, circleID)
	if err != nil {
		return nil, err
	}

	return members, nil
}

func (r *circleRepository) IsMemberEmail(ctx context.Context, circleID model.ID, email string) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM circle_members m
	          JOIN users u ON u.id = m.user_id
	          WHERE m.circle_id = $1 AND u.email = $2`

	err := r.db.GetContext(ctx, &n, query, circleID, email)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *circleRepository) RemoveMember(ctx context.Context, circleID, userID model.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM circle_members WHERE circle_id = $1 AND user_id = $2`, circleID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrMemberNotFound)
}

func (r *circleRepository) SetAdmin(ctx context.Context, circleID, userID model.ID, isAdmin bool) error {
	query := `UPDATE circle_members SET is_admin = $1 WHERE circle_id = $2 AND user_id = $3`

	result, err := r.db.ExecContext(ctx, query, isAdmin, circleID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrMemberNotFound)
}

// LockAdmins returns the circle's admins. On Postgres their rows stay
// locked until the transaction ends; SQLite already serialises writers.
func (r *circleRepository) LockAdmins(ctx context.Context, circleID model.ID) ([]model.ID, error) {
	ids := []model.ID{}
	query := `SELECT user_id FROM circle_members WHERE circle_id = $1 AND is_admin = $2 ORDER BY user_id`
	if r.db.DriverName() == "pgx" {
		query += ` FOR UPDATE`
	}

	err := r.db.SelectContext(ctx, &ids, query, circleID, true)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *circleRepository) IDsForUser(ctx context.Context, userID model.ID) ([]model.ID, error) {
	ids := []model.ID{}
	query := `SELECT circle_id FROM circle_members WHERE user_id = $1 ORDER BY circle_id`

	err := r.db.SelectContext(ctx, &ids, query, userID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountMemberships counts how many of circleIDs the user belongs to.
func (r *circleRepository) CountMemberships(ctx context.Context, userID model.ID, circleIDs []model.ID) (int, error) {
	if len(circleIDs) == 0 {
		return 0, nil
	}

	query, args, err := in(r.db, `SELECT COUNT(*) FROM circle_members WHERE user_id = ? AND circle_id IN (?)`, userID, circleIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var n int
	err = r.db.GetContext(ctx, &n, query, args...)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *circleRepository) CreateInvitation(ctx context.Context, inv *model.Invitation) error {
	query := `INSERT INTO circle_invitations (token, circle_id, email, invited_by, invited_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, inv.Token, inv.CircleID, inv.Email, inv.InvitedBy, inv.InvitedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrInvitationExists
		}
		return err
	}
	return nil
}

const invitationColumns = `i.token, i.circle_id, c.name AS circle_name, i.email, i.invited_by, i.invited_at`

func (r *circleRepository) InvitationByToken(ctx context.Context, token string) (*model.Invitation, error) {
	inv := &model.Invitation{}
	query := `SELECT ` + invitationColumns + ` FROM circle_invitations i
	          JOIN circles c ON c.id = i.circle_id
	          WHERE i.token = $1`

	err := r.db.GetContext(ctx, inv, query, token)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}

	return inv, nil
}

func (r *circleRepository) Invitations(ctx context.Context, circleID model.ID) ([]model.Invitation, error) {
	invs := []model.Invitation{}
	query := `SELECT ` + invitationColumns + ` FROM circle_invitations i
	          JOIN circles c ON c.id = i.circle_id
	          WHERE i.circle_id = $1
	          ORDER BY i.invited_at ASC`

	err := r.db.SelectContext(ctx, &invs, query, circleID)
	if err != nil {
		return nil, err
	}
	return invs, nil
}

func (r *circleRepository) InvitationsForEmail(ctx context.Context, email string) ([]model.Invitation, error) {
	invs := []model.Invitation{}
	query := `SELECT ` + invitationColumns + ` FROM circle_invitations i
	          JOIN circles c ON c.id = i.circle_id
	          WHERE i.email = $1
	          ORDER BY i.invited_at DESC`

	err := r.db.SelectContext(ctx, &invs, query, email)
	if err != nil {
		return nil, err
	}
	return invs, nil
}

func (r *circleRepository) DeleteInvitation(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM circle_invitations WHERE token = $1`, token)
	if err != nil {
		return err
	}
	return expectRows(result, ErrInvitationNotFound)
}
