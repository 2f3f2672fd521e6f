package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

// CredentialVerifier checks an email and password against stored identities.
type CredentialVerifier struct {
	users repository.UserRepository
}

// NewCredentialVerifier builds the verifier.
func NewCredentialVerifier(users repository.UserRepository) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify returns the identity for valid credentials. Unknown email, deleted
// account and wrong password all yield ErrBadCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, apperrors.ErrBadCredentials
	}

	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			auth.BurnComparison(password)
			return nil, apperrors.ErrBadCredentials
		}
		return nil, apperrors.NewInternalError(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.ErrBadCredentials
	}
	if user.IsDeleted {
		return nil, apperrors.ErrBadCredentials
	}
	return user, nil
}
