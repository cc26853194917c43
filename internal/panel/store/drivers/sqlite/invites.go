package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/store"
)

type invitesRepo struct {
	db dbtx
}

const inviteColumns = `id, email, role, token_hash, created_by, expires_at, accepted_at, created_at, updated_at`

func scanInvite(row interface{ Scan(dest ...any) error }) (domain.Invite, error) {
	var (
		inv        domain.Invite
		role       string
		acceptedAt sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.Email, &role, &inv.TokenHash, &inv.CreatedBy,
		&inv.ExpiresAt, &acceptedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return domain.Invite{}, err
	}
	inv.Role = domain.Role(role)
	inv.AcceptedAt = mapNullTimePtr(acceptedAt)
	return inv, nil
}

func (r *invitesRepo) CreateInvite(ctx context.Context, inv domain.Invite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invites (id, email, role, token_hash, created_by, expires_at, accepted_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Email, string(inv.Role), inv.TokenHash, inv.CreatedBy,
		inv.ExpiresAt, mapOptionalTime(inv.AcceptedAt), inv.CreatedAt, inv.UpdatedAt)
	return mapConstraint(err)
}

func (r *invitesRepo) GetInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE token_hash = ?`, hash)
	inv, err := scanInvite(row)
	if err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitesRepo) FindLiveInviteByEmail(ctx context.Context, email string, now time.Time) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites
		 WHERE email = ? AND accepted_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		email, now)
	inv, err := scanInvite(row)
	if err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return inv, nil
}

// MarkInviteAccepted consumes the invite. The accepted_at IS NULL guard makes
// the update a compare-and-set, so only one of two racing redeemers wins.
func (r *invitesRepo) MarkInviteAccepted(ctx context.Context, inviteID string, acceptedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invites SET accepted_at = ?, updated_at = ?
		 WHERE id = ? AND accepted_at IS NULL`,
		acceptedAt, acceptedAt, inviteID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *invitesRepo) DeleteExpiredInvitesBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM invites WHERE expires_at < ?`, cutoff)
	return err
}
