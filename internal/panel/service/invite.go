package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/store"
	"github.com/opsdeck/opsdeck/pkg/cryptox"
	"github.com/opsdeck/opsdeck/pkg/idx"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

// DefaultInviteTTL is how long a freshly minted invite stays redeemable.
const DefaultInviteTTL = 72 * time.Hour

var (
	ErrInvalidInviteRequest = errors.New("invalid invite request")
	ErrInvalidRole          = errors.New("invalid role")
	ErrEmailTaken           = errors.New("a user with this email already exists")
	ErrInvitePending        = errors.New("a pending invite already exists for this email")
	ErrInviteNotFound       = errors.New("invalid invite token")
	ErrInviteAlreadyUsed    = errors.New("invite has already been used")
	ErrInviteExpired        = errors.New("invite has expired")
)

type InviteService struct {
	Store store.Store

	// BaseURL is the panel frontend origin used to build invite links.
	BaseURL string

	// TTL is the invite validity window; zero means DefaultInviteTTL.
	TTL time.Duration

	// Now is an optional clock override for tests.
	Now func() time.Time
}

func (s *InviteService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *InviteService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultInviteTTL
}

// CreateInvite mints an invite for an email/role pair and returns the invite
// record plus the redemption link carrying the raw token. Only the token's
// fingerprint is stored, so the link cannot be recovered later.
func (s *InviteService) CreateInvite(
	ctx context.Context,
	email string,
	role domain.Role,
	createdBy string,
) (domain.Invite, string, error) {
	log := slogx.FromContext(ctx)

	// 1. Validate input.
	if _, err := mail.ParseAddress(email); err != nil {
		log.Warn("invite requested with invalid email")
		return domain.Invite{}, "", ErrInvalidInviteRequest
	}
	if _, err := domain.ParseRole(role.String()); err != nil {
		log.Warn("invite requested with invalid role", slog.String("role", role.String()))
		return domain.Invite{}, "", ErrInvalidRole
	}

	// 2. Pre-check: the email must not belong to an existing account.
	// The users.email unique constraint is the real backstop at redeem time.
	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err == nil {
		log.Warn("invite requested for existing user")
		return domain.Invite{}, "", ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to check email availability", slog.Any("error", err))
		return domain.Invite{}, "", err
	}

	// 3. Pre-check: at most one live invite per email.
	now := s.now()
	_, err = s.Store.Invites().FindLiveInviteByEmail(ctx, email, now)
	if err == nil {
		log.Warn("invite requested while one is still pending")
		return domain.Invite{}, "", ErrInvitePending
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to check pending invites", slog.Any("error", err))
		return domain.Invite{}, "", err
	}

	// 4. Generate and fingerprint the token.
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate invite token", slog.Any("error", err))
		return domain.Invite{}, "", err
	}

	invite := domain.Invite{
		ID:        idx.New().String(),
		Email:     email,
		Role:      role,
		TokenHash: cryptox.FingerprintToken(token),
		CreatedBy: createdBy,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 5. Store the invite.
	if err := s.Store.Invites().CreateInvite(ctx, invite); err != nil {
		log.Error("failed to create invite",
			slog.String("invite_id", invite.ID),
			slog.Any("error", err),
		)
		return domain.Invite{}, "", err
	}

	log.Info("invite created",
		slog.String("invite_id", invite.ID),
		slog.String("role", role.String()),
		slog.String("created_by", createdBy),
		slog.Time("expires_at", invite.ExpiresAt),
	)

	// 6. Return the redemption link with the raw token.
	link := fmt.Sprintf("%s/register?token=%s", s.BaseURL, token)
	return invite, link, nil
}

// VerifyInvite resolves a raw invite token to its invite record, reporting
// unknown, consumed, and expired tokens distinctly.
func (s *InviteService) VerifyInvite(ctx context.Context, token string) (domain.Invite, error) {
	log := slogx.FromContext(ctx)

	if token == "" {
		return domain.Invite{}, ErrInviteNotFound
	}

	invite, err := s.Store.Invites().GetInviteByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("verification attempted with unknown invite token")
			return domain.Invite{}, ErrInviteNotFound
		}
		log.Error("failed to fetch invite", slog.Any("error", err))
		return domain.Invite{}, err
	}

	// Accepted wins over expired: a consumed invite stays consumed even
	// after its expiry passes.
	if invite.Accepted() {
		log.Warn("verification attempted with consumed invite", slog.String("invite_id", invite.ID))
		return domain.Invite{}, ErrInviteAlreadyUsed
	}
	if invite.Expired(s.now()) {
		log.Warn("verification attempted with expired invite", slog.String("invite_id", invite.ID))
		return domain.Invite{}, ErrInviteExpired
	}

	return invite, nil
}

// RegisterViaInvite redeems an invite and creates the account it promises.
// Consuming the invite and creating the user happen in one transaction; two
// racing redeemers are serialized by the accepted_at compare-and-set, and a
// concurrently created account is caught by the email unique constraint.
func (s *InviteService) RegisterViaInvite(
	ctx context.Context,
	token string,
	name string,
	password string,
) (domain.User, error) {
	log := slogx.FromContext(ctx)

	// 1. Validate input.
	if name == "" || password == "" {
		log.Warn("registration missing required fields")
		return domain.User{}, ErrInvalidInviteRequest
	}

	// 2. Resolve and validate the invite.
	invite, err := s.VerifyInvite(ctx, token)
	if err != nil {
		return domain.User{}, err
	}

	// 3. Hash the password before opening the transaction.
	passwordHash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.User{}, err
	}

	// 4. Consume the invite and create the user atomically.
	now := s.now()
	invitedAt := invite.CreatedAt
	newUser := domain.User{
		ID:           idx.New().String(),
		Email:        invite.Email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         invite.Role,
		Status:       domain.StatusActive,
		InvitedAt:    &invitedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Invites().MarkInviteAccepted(ctx, invite.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Warn("lost race redeeming invite", slog.String("invite_id", invite.ID))
				return ErrInviteAlreadyUsed
			}
			log.Error("failed to consume invite",
				slog.String("invite_id", invite.ID),
				slog.Any("error", err),
			)
			return err
		}

		if err := tx.Users().CreateUser(ctx, newUser); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				log.Warn("registration for already-taken email", slog.String("invite_id", invite.ID))
				return ErrEmailTaken
			}
			log.Error("failed to create user", slog.Any("error", err))
			return err
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	log.Info("user registered via invite",
		slog.String("user_id", newUser.ID),
		slog.String("invite_id", invite.ID),
		slog.String("role", newUser.Role.String()),
	)
	return newUser, nil
}
