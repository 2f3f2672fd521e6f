package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/config"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

const (
	uniqueViolation = "23505"
	emailRules      = "required,email"
	nicknameRules   = "required,nickname"
)

var nicknamePattern = regexp.MustCompile(`^[a-z0-9]{4,10}$`)

// SignupInput carries the fields of a new account. MASTER cannot be self-assigned.
type SignupInput struct {
	Email    string      `validate:"required,email"`
	Password string      `validate:"required,min=8,max=72"`
	Name     string      `validate:"required,max=100"`
	Nickname string      `validate:"required,nickname"`
	Phone    string      `validate:"omitempty,max=20"`
	Role     domain.Role `validate:"required,oneof=CUSTOMER OWNER MANAGER"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("nickname", func(fl validator.FieldLevel) bool {
		return nicknamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// validationError turns validator output into a VALIDATION_FAILED error
// keyed by lowercase field name.
func validationError(message, field string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError(message, nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		name := field
		if name == "" {
			name = strings.ToLower(fe.Field())
		}
		details[name] = ruleMessage(fe)
	}
	return apperrors.NewValidationError(message, details)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "nickname":
		return "must be 4-10 lowercase letters or digits"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}

// AccountService handles registration, availability checks and profile lookups.
type AccountService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	validate   *validator.Validate
	bcryptCost int
}

// AccountDependencies encapsulates collaborators of the account service.
type AccountDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAccountService builds the service.
func NewAccountService(cfg config.AuthConfig, deps AccountDependencies) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	return &AccountService{
		users:      deps.UserRepo,
		sessions:   deps.SessionRepo,
		dispatcher: dispatcher,
		logger:     logger,
		validate:   newValidator(),
		bcryptCost: cfg.BcryptCost,
	}
}

// Signup validates and stores a new account.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Nickname = strings.TrimSpace(in.Nickname)
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = domain.RoleCustomer
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError("invalid signup request", "", err)
	}

	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}
	if err := s.ensureNicknameFree(ctx, in.Nickname); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:        in.Email,
		Name:         in.Name,
		Nickname:     in.Nickname,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapCreateError(err)
	}

	s.logger.Info("account created", zap.String("email", user.Email), zap.String("role", string(user.Role)))
	if err := s.dispatcher.Publish(ctx, events.NewEvent(events.EventSignedUp, user.Email, events.SessionPayload{Role: user.Role})); err != nil {
		s.logger.Warn("publish auth event", zap.String("type", string(events.EventSignedUp)), zap.Error(err))
	}
	return user, nil
}

// CheckEmail returns nil when the email is well formed and unused.
func (s *AccountService) CheckEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, emailRules); err != nil {
		return validationError("invalid email", "email", err)
	}
	return s.ensureEmailFree(ctx, email)
}

// CheckNickname returns nil when the nickname is well formed and unused.
func (s *AccountService) CheckNickname(ctx context.Context, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if err := s.validate.Var(nickname, nicknameRules); err != nil {
		return validationError("invalid nickname", "nickname", err)
	}
	return s.ensureNicknameFree(ctx, nickname)
}

// Profile returns the cached snapshot for email, loading it from the
// repository on a miss or when the cache cannot be read.
func (s *AccountService) Profile(ctx context.Context, email string) (*domain.Profile, error) {
	cached, err := s.sessions.GetProfile(ctx, email)
	if err != nil {
		s.logger.Warn("read profile snapshot", zap.String("email", email), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
		}
		return nil, apperrors.NewInternalError(err)
	}
	if user.IsDeleted {
		return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
	}
	profile := user.Profile()
	return &profile, nil
}

func (s *AccountService) ensureEmailFree(ctx context.Context, email string) error {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if exists {
		return apperrors.ErrDuplicateEmail
	}
	return nil
}

func (s *AccountService) ensureNicknameFree(ctx context.Context, nickname string) error {
	exists, err := s.users.ExistsByNickname(ctx, nickname)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if exists {
		return apperrors.ErrDuplicateNickname
	}
	return nil
}

// mapCreateError turns a unique violation from a concurrent signup into the
// matching duplicate error.
func mapCreateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "nickname") {
			return apperrors.ErrDuplicateNickname
		}
		return apperrors.ErrDuplicateEmail
	}
	return apperrors.NewInternalError(err)
}
