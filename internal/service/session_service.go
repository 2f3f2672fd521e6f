package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/config"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

// SessionService coordinates sign-in, refresh-token rotation and sign-out.
type SessionService struct {
	verifier    *CredentialVerifier
	users       repository.UserRepository
	sessions    repository.SessionRepository
	tokens      *auth.TokenManager
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	profileTTL  time.Duration
	rotationCAS bool
}

// SessionDependencies encapsulates collaborators of the session service.
type SessionDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Tokens      *auth.TokenManager
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewSessionService builds the service.
func NewSessionService(cfg config.AuthConfig, deps SessionDependencies) *SessionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	return &SessionService{
		verifier:    NewCredentialVerifier(deps.UserRepo),
		users:       deps.UserRepo,
		sessions:    deps.SessionRepo,
		tokens:      deps.Tokens,
		dispatcher:  dispatcher,
		logger:      logger,
		profileTTL:  cfg.ProfileCacheTTL,
		rotationCAS: cfg.RotationCAS,
	}
}

// SignIn verifies credentials, issues a token pair and records the refresh
// pointer. No pair is returned unless the pointer write succeeded.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrBadCredentials) {
			s.publish(ctx, events.NewEvent(events.EventSignInFailed, email, nil))
		}
		return nil, err
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.PutRefreshPointer(ctx, user.Email, pair.RefreshToken, s.tokens.RefreshTTL()); err != nil {
		return nil, err
	}

	s.cacheProfile(ctx, user)
	s.publish(ctx, events.NewEvent(events.EventSignedIn, user.Email, events.SessionPayload{
		Role:             user.Role,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}))
	return pair, nil
}

// Refresh rotates a refresh token. presented must carry the bearer prefix,
// exactly as the pointer was stored; only the most recently issued refresh
// token for the identity is accepted.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*domain.TokenPair, error) {
	bare := auth.StripBearer(presented)
	if !s.tokens.Validate(bare) {
		s.rejectRefresh(ctx, "", "invalid")
		return nil, apperrors.ErrRefreshTokenInvalid
	}
	claims, err := s.tokens.Claims(bare)
	if err != nil {
		s.rejectRefresh(ctx, "", "invalid")
		return nil, apperrors.ErrRefreshTokenInvalid
	}
	email := claims.Subject

	stored, ok, err := s.sessions.GetRefreshPointer(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok || stored != presented {
		s.rejectRefresh(ctx, email, "mismatch")
		return nil, apperrors.ErrRefreshTokenMismatch
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.rejectRefresh(ctx, email, "unknown_user")
			return nil, apperrors.ErrRefreshTokenInvalid
		}
		return nil, apperrors.NewInternalError(err)
	}
	if user.IsDeleted {
		s.rejectRefresh(ctx, email, "deleted_user")
		return nil, apperrors.ErrRefreshTokenInvalid
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	if s.rotationCAS {
		err = s.sessions.RotateRefreshPointer(ctx, email, presented, pair.RefreshToken, s.tokens.RefreshTTL())
		if errors.Is(err, repository.ErrPointerMismatch) {
			s.rejectRefresh(ctx, email, "lost_race")
			return nil, apperrors.ErrRefreshTokenMismatch
		}
	} else {
		err = s.sessions.PutRefreshPointer(ctx, email, pair.RefreshToken, s.tokens.RefreshTTL())
	}
	if err != nil {
		return nil, err
	}

	s.cacheProfile(ctx, user)
	s.publish(ctx, events.NewEvent(events.EventTokenRefreshed, email, events.SessionPayload{
		Role:             user.Role,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}))
	return pair, nil
}

// SignOut deletes the identity's refresh pointer and revokes accessToken for
// the rest of its lifetime. Other access tokens of the same identity stay
// valid until they expire. Signing out an already revoked token is a no-op
// and leaves any newer refresh pointer alone.
func (s *SessionService) SignOut(ctx context.Context, accessToken, email string) error {
	accessToken = auth.StripBearer(accessToken)
	if accessToken == "" || email == "" {
		return apperrors.ErrAuthenticationRequired
	}

	revoked, err := s.sessions.IsRevoked(ctx, accessToken)
	if err != nil {
		return err
	}
	if revoked {
		s.logger.Debug("access token already revoked", zap.String("email", email))
		return nil
	}

	if err := s.sessions.DeleteRefreshPointer(ctx, email); err != nil {
		return err
	}
	ttl := s.tokens.RemainingLifetime(accessToken)
	if err := s.sessions.PutRevocation(ctx, accessToken, ttl); err != nil {
		return err
	}

	if err := s.sessions.DeleteProfile(ctx, email); err != nil {
		s.logger.Warn("evict profile snapshot", zap.String("email", email), zap.Error(err))
	}
	s.publish(ctx, events.NewEvent(events.EventSignedOut, email, nil))
	return nil
}

// Tokens exposes the underlying token manager for middleware usage.
func (s *SessionService) Tokens() *auth.TokenManager {
	return s.tokens
}

func (s *SessionService) issuePair(user *domain.User) (*domain.TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(user.Email, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("issue access token: %w", err))
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(user.Email)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("issue refresh token: %w", err))
	}
	return &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Email:            user.Email,
		Nickname:         user.Nickname,
		Role:             user.Role,
	}, nil
}

func (s *SessionService) cacheProfile(ctx context.Context, user *domain.User) {
	if s.profileTTL <= 0 {
		return
	}
	if err := s.sessions.PutProfile(ctx, user.Profile(), s.profileTTL); err != nil {
		s.logger.Warn("cache profile snapshot", zap.String("email", user.Email), zap.Error(err))
	}
}

func (s *SessionService) rejectRefresh(ctx context.Context, email, reason string) {
	s.publish(ctx, events.NewEvent(events.EventRefreshRejected, email, events.RefreshRejectedPayload{Reason: reason}))
}

func (s *SessionService) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish auth event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
