package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-complaint-auth/app/observability/metrics"
	"github.com/FACorreiaa/go-complaint-auth/config"
	"github.com/FACorreiaa/go-complaint-auth/internal/api"
	"github.com/FACorreiaa/go-complaint-auth/internal/api/geography"
	"github.com/FACorreiaa/go-complaint-auth/internal/notify"
	"github.com/FACorreiaa/go-complaint-auth/internal/phone"
	"github.com/FACorreiaa/go-complaint-auth/internal/tokens"
	"github.com/FACorreiaa/go-complaint-auth/internal/types"
)

const (
	MsgRegisteredPendingVerification = "Registration successful. Please verify your account with the code we sent."
	MsgRegistered                    = "Registration successful. You can now log in."
	MsgVerified                      = "Account verified successfully"
	MsgAlreadyVerified               = "Account is already verified"
	MsgResendVerification            = "If the account exists and is awaiting verification, a new code has been sent."
	MsgForgotPassword                = "If an account exists with this email, a password reset link has been sent."
	MsgPasswordReset                 = "Password has been reset. Please log in again."
	MsgPasswordChanged               = "Password changed successfully. Please log in again."
	MsgLoggedOut                     = "ok"

	secureTokenBytes = 32

	// VerificationCodeTTL is how long a verification code or link stays valid.
	VerificationCodeTTL = 10 * time.Minute
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService is the authentication and session core.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	VerifyCode(ctx context.Context, id Identifier, code string) (*types.Response, error)
	VerifyToken(ctx context.Context, token string) (*types.Response, error)
	// ResendVerification always returns the same response.
	ResendVerification(ctx context.Context, id Identifier) *types.Response

	Login(ctx context.Context, id Identifier, password, portal string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error

	// ForgotPassword always returns the same response.
	ForgotPassword(ctx context.Context, email string) *types.Response
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error

	GetProfile(ctx context.Context, userID int64) (*types.UserProfile, error)
	CleanupPendingUsers(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Runner executes best-effort work such as notifications. Implementations
// must not report failures back to the caller.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// inlineRunner runs work synchronously and logs failures.
type inlineRunner struct {
	logger *slog.Logger
}

func (r inlineRunner) Go(name string, fn func(ctx context.Context) error) {
	if err := fn(context.Background()); err != nil {
		r.logger.Warn("Background task failed", slog.String("task", name), slog.Any("error", err))
	}
}

type AuthServiceImpl struct {
	logger     *slog.Logger
	repo       AuthRepo
	codec      *tokens.Codec
	cfg        config.AuthConfig
	lookup     UserLookup
	geo        geography.Validator
	notifier   notify.Notifier
	auditor    notify.Auditor
	background Runner
	auditing   Runner
	metrics    *metrics.AppMetrics
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

type ServiceOption func(*AuthServiceImpl)

// WithUserLookup replaces the login lookup strategy, e.g. with a CachedLookup.
func WithUserLookup(l UserLookup) ServiceOption {
	return func(s *AuthServiceImpl) { s.lookup = l }
}

func WithGeography(v geography.Validator) ServiceOption {
	return func(s *AuthServiceImpl) { s.geo = v }
}

func WithNotifier(n notify.Notifier) ServiceOption {
	return func(s *AuthServiceImpl) { s.notifier = n }
}

func WithAuditor(a notify.Auditor) ServiceOption {
	return func(s *AuthServiceImpl) { s.auditor = a }
}

// WithBackground sets where notifications and last-login updates run. The
// default runs them inline.
func WithBackground(r Runner) ServiceOption {
	return func(s *AuthServiceImpl) { s.background = r }
}

// WithAuditBackground sets where audit events are published. Without it they
// share the WithBackground runner.
func WithAuditBackground(r Runner) ServiceOption {
	return func(s *AuthServiceImpl) { s.auditing = r }
}

func WithMetrics(m *metrics.AppMetrics) ServiceOption {
	return func(s *AuthServiceImpl) { s.metrics = m }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *AuthServiceImpl) { s.now = now }
}

// NewAuthService creates a new auth service instance.
func NewAuthService(repo AuthRepo, codec *tokens.Codec, cfg *config.Config, logger *slog.Logger, opts ...ServiceOption) *AuthServiceImpl {
	s := &AuthServiceImpl{
		logger:   logger,
		repo:     repo,
		codec:    codec,
		cfg:      cfg.Auth,
		lookup:   NewStoreLookup(repo),
		notifier: notify.NewLogNotifier(logger),
		auditor:  notify.NopAuditor{},
		now:      time.Now,
	}
	s.background = inlineRunner{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditing == nil {
		s.auditing = s.background
	}
	return s
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountSuspended):
		return "suspended"
	case errors.Is(err, ErrVerificationRequired):
		return "verification_required"
	case errors.Is(err, ErrPortalForbidden):
		return "portal_forbidden"
	case errors.Is(err, ErrDuplicatePhone), errors.Is(err, ErrDuplicateEmail):
		return "duplicate"
	case errors.Is(err, ErrInvalidGeography):
		return "invalid_geography"
	case errors.Is(err, ErrInvalidOrExpiredCode), errors.Is(err, ErrInvalidOrExpiredToken):
		return "invalid_or_expired"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	}
	return "error"
}

func recipientOf(u *types.UserProfile) notify.Recipient {
	return notify.Recipient{
		UserID: u.ID,
		Name:   strings.TrimSpace(u.FirstName + " " + u.LastName),
		Email:  u.EmailAddress(),
		Phone:  u.Phone,
	}
}

func (s *AuthServiceImpl) audit(typ notify.EventType, userID int64, attrs map[string]string) {
	e := notify.Event{Type: typ, UserID: userID, OccurredAt: s.now().UTC(), Attributes: attrs}
	s.auditing.Go("audit:"+string(typ), func(ctx context.Context) error {
		return s.auditor.Publish(ctx, e)
	})
}

func (s *AuthServiceImpl) invalidate(ctx context.Context, u *types.UserProfile) {
	if inv, ok := s.lookup.(ProfileInvalidator); ok {
		inv.Invalidate(ctx, u)
	}
}

// burnHash spends the same bcrypt time as a real comparison so a missing user
// is indistinguishable from a wrong password.
func (s *AuthServiceImpl) burnHash(password string) {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("complaint-auth-timing-equalizer"), s.cfg.BcryptCost)
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
	}
}

func (s *AuthServiceImpl) hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

func (s *AuthServiceImpl) newVerificationToken(userID int64) (types.VerificationToken, error) {
	code, err := tokens.GenerateOTP(s.cfg.OTPLength)
	if err != nil {
		return types.VerificationToken{}, err
	}
	tok, err := tokens.GenerateSecureToken(secureTokenBytes)
	if err != nil {
		return types.VerificationToken{}, err
	}
	return types.VerificationToken{
		ID:        uuid.New(),
		Token:     tok,
		Code:      code,
		UserID:    userID,
		ExpiresAt: s.now().Add(VerificationCodeTTL),
	}, nil
}

func (s *AuthServiceImpl) sendVerification(u *types.UserProfile, vt types.VerificationToken) {
	to := recipientOf(u)
	link := s.cfg.VerifyURL + "?token=" + vt.Token
	code, ttl := vt.Code, VerificationCodeTTL
	s.background.Go("verification-code", func(ctx context.Context) error {
		return s.notifier.SendVerificationCode(ctx, to, code, link, ttl)
	})
}

// Register implements AuthService.
func (s *AuthServiceImpl) Register(ctx context.Context, req RegisterRequest) (res *RegisterResult, err error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()
	defer func() { s.metrics.RecordRegister(ctx, outcomeOf(err)) }()

	l := s.logger.With(slog.String("method", "Register"))

	phoneNumber := phone.Normalize(req.Phone)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.repo.PhoneExists(ctx, phoneNumber)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Phone check failed")
		return nil, fmt.Errorf("error checking phone: %w", err)
	}
	if exists {
		span.SetStatus(codes.Error, "Duplicate phone")
		return nil, ErrDuplicatePhone
	}

	if email != "" {
		exists, err = s.repo.EmailExists(ctx, email)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Email check failed")
			return nil, fmt.Errorf("error checking email: %w", err)
		}
		if exists {
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, ErrDuplicateEmail
		}
	}

	geo := req.Geography()
	if !geo.IsEmpty() && s.geo != nil {
		if err = s.geo.Validate(ctx, geo); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Invalid geography")
			return nil, err
		}
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hashing failed")
		return nil, err
	}

	requiresVerification := s.cfg.EmailVerificationEnabled
	status := types.StatusActive
	if requiresVerification {
		status = types.StatusPending
	}

	nu := types.NewUser{
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Phone:         phoneNumber,
		PasswordHash:  hash,
		Role:          types.RoleCustomer,
		Status:        status,
		EmailVerified: !requiresVerification,
		Geography:     geo,
	}
	if email != "" {
		nu.Email = &email
	}

	vt, err := s.newVerificationToken(0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token generation failed")
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	userID, err := s.repo.CreatePendingUser(ctx, nu, vt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User creation failed")
		if errors.Is(err, ErrDuplicatePhone) || errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	span.SetAttributes(attribute.Int64("user.id", userID))

	if requiresVerification {
		s.sendVerification(&types.UserProfile{
			ID: userID, Email: nu.Email, Phone: nu.Phone, FirstName: nu.FirstName, LastName: nu.LastName,
		}, vt)
	}
	s.audit(notify.EventUserRegistered, userID, map[string]string{"status": string(status)})

	l.InfoContext(ctx, "User registered", slog.Int64("userID", userID), slog.Bool("requiresVerification", requiresVerification))
	span.SetStatus(codes.Ok, "User registered")

	msg := MsgRegistered
	if requiresVerification {
		msg = MsgRegisteredPendingVerification
	}
	return &RegisterResult{Success: true, Message: msg, RequiresVerification: requiresVerification}, nil
}

// findForVerification reads from the store directly so the verified flag is
// never stale. Phone lookups retry once with the legacy alternate form.
func (s *AuthServiceImpl) findForVerification(ctx context.Context, id Identifier) (*types.UserProfile, error) {
	store := NewStoreLookup(s.repo)
	u, err := store.LookupUser(ctx, id)
	if err == nil || !errors.Is(err, api.ErrNotFound) || id.Phone == "" || !s.cfg.LegacyPhoneFallback {
		return u, err
	}
	alt, ok := phone.Alternate(id.Phone)
	if !ok {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Retrying lookup with alternate phone form", slog.String("method", "findForVerification"))
	u, altErr := store.LookupUser(ctx, Identifier{Phone: alt})
	if altErr != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthServiceImpl) afterActivation(ctx context.Context, u *types.UserProfile, method string) {
	s.invalidate(ctx, u)
	to := recipientOf(u)
	s.background.Go("welcome", func(ctx context.Context) error {
		return s.notifier.SendWelcome(ctx, to)
	})
	s.audit(notify.EventUserVerified, u.ID, map[string]string{"method": method})
}

// VerifyCode implements AuthService.
func (s *AuthServiceImpl) VerifyCode(ctx context.Context, id Identifier, code string) (res *types.Response, err error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "VerifyCode")
	defer span.End()
	defer func() { s.metrics.RecordVerification(ctx, "code", outcomeOf(err)) }()

	l := s.logger.With(slog.String("method", "VerifyCode"))

	if id.IsZero() {
		return nil, ErrIdentifierRequired
	}

	u, err := s.findForVerification(ctx, id)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			span.SetStatus(codes.Error, "User not found")
			return nil, ErrInvalidOrExpiredCode
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lookup failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	span.SetAttributes(attribute.Int64("user.id", u.ID))

	if u.EmailVerified {
		span.SetStatus(codes.Ok, "Already verified")
		return &types.Response{Success: true, Message: MsgAlreadyVerified}, nil
	}

	if err = s.repo.ConsumeVerificationCode(ctx, u.ID, code, s.now()); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			l.InfoContext(ctx, "Verification code rejected", slog.Int64("userID", u.ID))
			span.SetStatus(codes.Error, "Code rejected")
			return nil, ErrInvalidOrExpiredCode
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Verification failed")
		return nil, fmt.Errorf("error verifying code: %w", err)
	}

	s.afterActivation(ctx, u, "code")
	l.InfoContext(ctx, "User verified", slog.Int64("userID", u.ID))
	span.SetStatus(codes.Ok, "User verified")
	return &types.Response{Success: true, Message: MsgVerified}, nil
}

// VerifyToken implements AuthService.
func (s *AuthServiceImpl) VerifyToken(ctx context.Context, token string) (res *types.Response, err error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "VerifyToken")
	defer span.End()
	defer func() { s.metrics.RecordVerification(ctx, "link", outcomeOf(err)) }()

	l := s.logger.With(slog.String("method", "VerifyToken"))

	vt, err := s.repo.GetVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			span.SetStatus(codes.Error, "Token not found")
			return nil, ErrInvalidOrExpiredToken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lookup failed")
		return nil, fmt.Errorf("error fetching verification token: %w", err)
	}

	u, err := s.repo.GetUserByID(ctx, vt.UserID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lookup failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if u.EmailVerified {
		span.SetStatus(codes.Ok, "Already verified")
		return &types.Response{Success: true, Message: MsgAlreadyVerified}, nil
	}

	if _, err = s.repo.ConsumeVerificationToken(ctx, token, s.now()); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			span.SetStatus(codes.Error, "Token rejected")
			return nil, ErrInvalidOrExpiredToken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Verification failed")
		return nil, fmt.Errorf("error verifying token: %w", err)
	}

	s.afterActivation(ctx, u, "link")
	l.InfoContext(ctx, "User verified", slog.Int64("userID", u.ID))
	span.SetStatus(codes.Ok, "User verified")
	return &types.Response{Success: true, Message: MsgVerified}, nil
}

// ResendVerification implements AuthService.
func (s *AuthServiceImpl) ResendVerification(ctx context.Context, id Identifier) *types.Response {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ResendVerification")
	defer span.End()

	l := s.logger.With(slog.String("method", "ResendVerification"))
	generic := &types.Response{Success: true, Message: MsgResendVerification}

	if id.IsZero() {
		return generic
	}

	u, err := s.findForVerification(ctx, id)
	if err != nil {
		if !errors.Is(err, api.ErrNotFound) {
			l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
			span.RecordError(err)
		}
		return generic
	}
	if u.EmailVerified {
		return generic
	}

	vt, err := s.newVerificationToken(u.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to generate verification token", slog.Any("error", err))
		span.RecordError(err)
		return generic
	}
	if err := s.repo.IssueVerificationToken(ctx, vt); err != nil {
		l.ErrorContext(ctx, "Failed to issue verification token", slog.Any("error", err))
		span.RecordError(err)
		return generic
	}

	s.sendVerification(u, vt)
	l.InfoContext(ctx, "Verification code reissued", slog.Int64("userID", u.ID))
	span.SetStatus(codes.Ok, "Verification code reissued")
	return generic
}

// issueTokens signs the access and refresh token concurrently.
func (s *AuthServiceImpl) issueTokens(u *types.UserProfile) (*TokenPair, time.Time, error) {
	sub := tokens.SubjectFromProfile(u)

	var (
		g                errgroup.Group
		access, refresh  string
		refreshExpiresAt time.Time
	)
	g.Go(func() error {
		var err error
		access, _, err = s.codec.SignAccessToken(sub)
		return err
	})
	g.Go(func() error {
		var err error
		refresh, refreshExpiresAt, err = s.codec.SignRefreshToken(sub)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, time.Time{}, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int64(s.codec.AccessTTL().Seconds()),
		RefreshExpiresIn: int64(s.codec.RefreshTTL().Seconds()),
		User:             u,
	}, refreshExpiresAt, nil
}

// Login implements AuthService.
func (s *AuthServiceImpl) Login(ctx context.Context, id Identifier, password, portal string) (pair *TokenPair, err error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login", trace.WithAttributes(
		attribute.String("auth.portal", portal),
	))
	defer span.End()
	start := s.now()
	defer func() { s.metrics.RecordLogin(ctx, outcomeOf(err), s.now().Sub(start)) }()

	l := s.logger.With(slog.String("method", "Login"))

	if id.IsZero() {
		return nil, ErrIdentifierRequired
	}

	u, err := s.lookup.LookupUser(ctx, id)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			s.burnHash(password)
			l.InfoContext(ctx, "Login rejected")
			span.SetStatus(codes.Error, "Invalid credentials")
			return nil, ErrInvalidCredentials
		}
		l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lookup failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	span.SetAttributes(attribute.Int64("user.id", u.ID))

	if u.Status == types.StatusSuspended {
		span.SetStatus(codes.Error, "Account suspended")
		return nil, ErrAccountSuspended
	}
	if s.cfg.EmailVerificationEnabled && u.Status == types.StatusPending && !u.EmailVerified {
		span.SetStatus(codes.Error, "Verification required")
		return nil, ErrVerificationRequired
	}

	cred, err := s.repo.GetCredentials(ctx, u.ID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			s.burnHash(password)
			s.invalidate(ctx, u)
			return nil, ErrInvalidCredentials
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Credential lookup failed")
		return nil, fmt.Errorf("error fetching credentials: %w", err)
	}
	if err = bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		l.InfoContext(ctx, "Login rejected", slog.Int64("userID", u.ID))
		span.SetStatus(codes.Error, "Invalid credentials")
		return nil, ErrInvalidCredentials
	}

	if portal == PortalAdmin && !u.Role.IsAdmin() {
		l.WarnContext(ctx, "Non-admin role rejected by admin portal", slog.Int64("userID", u.ID), slog.String("role", string(u.Role)))
		span.SetStatus(codes.Error, "Portal forbidden")
		return nil, ErrPortalForbidden
	}

	pair, refreshExpiresAt, err := s.issueTokens(u)
	if err != nil {
		l.ErrorContext(ctx, "Failed to sign tokens", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token signing failed")
		return nil, fmt.Errorf("error generating tokens: %w", err)
	}

	if err = s.repo.StoreRefreshToken(ctx, u.ID, pair.RefreshToken, refreshExpiresAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Refresh token persistence failed")
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	userID, at := u.ID, s.now()
	s.background.Go("last-login", func(ctx context.Context) error {
		return s.repo.UpdateLastLogin(ctx, userID, at)
	})
	s.audit(notify.EventLoginSucceeded, u.ID, map[string]string{"portal": portal})

	l.InfoContext(ctx, "User logged in", slog.Int64("userID", u.ID))
	span.SetStatus(codes.Ok, "User logged in")
	return pair, nil
}

// Refresh implements AuthService.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Refresh")
	defer span.End()
	defer func() { s.metrics.RecordRefresh(ctx, outcomeOf(err)) }()

	l := s.logger.With(slog.String("method", "Refresh"))

	claims, err := s.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		l.InfoContext(ctx, "Refresh token rejected", slog.Any("error", err))
		span.SetStatus(codes.Error, "Refresh token rejected")
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", userID))

	row, err := s.repo.GetRefreshToken(ctx, refreshToken, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			l.InfoContext(ctx, "Refresh token not on record", slog.Int64("userID", userID))
			span.SetStatus(codes.Error, "Refresh token not on record")
			return nil, fmt.Errorf("%w: refresh token revoked or rotated", ErrTokenInvalid)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Refresh token lookup failed")
		return nil, fmt.Errorf("error fetching refresh token: %w", err)
	}
	if !row.ExpiresAt.After(s.now()) {
		span.SetStatus(codes.Error, "Stored refresh token expired")
		return nil, fmt.Errorf("%w: stored refresh token expired", ErrTokenExpired)
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrTokenInvalid)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "User lookup failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if u.Status == types.StatusSuspended {
		span.SetStatus(codes.Error, "Account suspended")
		return nil, fmt.Errorf("%w: account suspended", ErrTokenInvalid)
	}

	pair, newExpiresAt, err := s.issueTokens(u)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token signing failed")
		return nil, fmt.Errorf("error generating tokens: %w", err)
	}

	if err = s.repo.RotateRefreshToken(ctx, userID, refreshToken, pair.RefreshToken, newExpiresAt); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			l.WarnContext(ctx, "Refresh token rotated concurrently", slog.Int64("userID", userID))
			span.SetStatus(codes.Error, "Lost rotation race")
			return nil, fmt.Errorf("%w: refresh token already rotated", ErrTokenInvalid)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rotation failed")
		return nil, fmt.Errorf("error rotating refresh token: %w", err)
	}

	span.SetStatus(codes.Ok, "Session refreshed")
	return pair, nil
}

// Logout implements AuthService. Unknown tokens are ignored.
func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Logout")
	defer span.End()

	deleted, err := s.repo.DeleteRefreshToken(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Logout failed")
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	s.logger.DebugContext(ctx, "Logout", slog.String("method", "Logout"), slog.Bool("deleted", deleted))
	span.SetStatus(codes.Ok, "Logged out")
	return nil
}

// ForgotPassword implements AuthService.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) *types.Response {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ForgotPassword")
	defer span.End()

	l := s.logger.With(slog.String("method", "ForgotPassword"))
	generic := &types.Response{Success: true, Message: MsgForgotPassword}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return generic
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, api.ErrNotFound) {
			l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
			span.RecordError(err)
		}
		return generic
	}

	tok, err := tokens.GenerateSecureToken(secureTokenBytes)
	if err != nil {
		l.ErrorContext(ctx, "Failed to generate reset token", slog.Any("error", err))
		span.RecordError(err)
		return generic
	}
	prt := types.PasswordResetToken{
		ID:        uuid.New(),
		Token:     tok,
		UserID:    u.ID,
		ExpiresAt: s.now().Add(s.cfg.PasswordResetTTL),
	}
	if err := s.repo.CreatePasswordResetToken(ctx, prt); err != nil {
		l.ErrorContext(ctx, "Failed to store reset token", slog.Any("error", err))
		span.RecordError(err)
		return generic
	}

	to := recipientOf(u)
	link := s.cfg.ResetURL + "?token=" + tok
	ttl := s.cfg.PasswordResetTTL
	s.background.Go("password-reset", func(ctx context.Context) error {
		return s.notifier.SendPasswordReset(ctx, to, link, ttl)
	})
	s.audit(notify.EventPasswordResetReq, u.ID, nil)

	span.SetStatus(codes.Ok, "Reset token issued")
	return generic
}

// ResetPassword implements AuthService.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ResetPassword")
	defer span.End()

	l := s.logger.With(slog.String("method", "ResetPassword"))

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hashing failed")
		return err
	}

	userID, err := s.repo.ResetPassword(ctx, token, hash, s.now())
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			span.SetStatus(codes.Error, "Reset token rejected")
			return ErrInvalidOrExpiredToken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Reset failed")
		return fmt.Errorf("error resetting password: %w", err)
	}

	s.audit(notify.EventPasswordReset, userID, nil)
	s.audit(notify.EventSessionsRevoked, userID, map[string]string{"reason": "password_reset"})
	l.InfoContext(ctx, "Password reset, sessions revoked", slog.Int64("userID", userID))
	span.SetStatus(codes.Ok, "Password reset")
	return nil
}

// ChangePassword implements AuthService.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ChangePassword", trace.WithAttributes(
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ChangePassword"), slog.Int64("userID", userID))

	cred, err := s.repo.GetCredentials(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return ErrInvalidCredentials
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Credential lookup failed")
		return fmt.Errorf("error fetching credentials: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(currentPassword)); err != nil {
		span.SetStatus(codes.Error, "Incorrect password")
		return ErrIncorrectPassword
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hashing failed")
		return err
	}
	if err := s.repo.ChangePassword(ctx, userID, hash); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Password update failed")
		return fmt.Errorf("error changing password: %w", err)
	}

	s.audit(notify.EventPasswordChanged, userID, nil)
	s.audit(notify.EventSessionsRevoked, userID, map[string]string{"reason": "password_change"})
	l.InfoContext(ctx, "Password changed, sessions revoked")
	span.SetStatus(codes.Ok, "Password changed")
	return nil
}

// GetProfile implements AuthService.
func (s *AuthServiceImpl) GetProfile(ctx context.Context, userID int64) (*types.UserProfile, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error fetching user profile: %w", err)
	}
	return u, nil
}

// CleanupPendingUsers implements AuthService.
func (s *AuthServiceImpl) CleanupPendingUsers(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "CleanupPendingUsers")
	defer span.End()

	cutoff := s.now().Add(-olderThan)
	n, err := s.repo.DeletePendingUsers(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cleanup failed")
		return 0, fmt.Errorf("error deleting pending users: %w", err)
	}

	s.metrics.RecordPendingUsersDeleted(ctx, n)
	if n > 0 {
		s.audit(notify.EventPendingUsersPurge, 0, map[string]string{"count": fmt.Sprintf("%d", n)})
	}
	s.logger.InfoContext(ctx, "Pending users cleaned up",
		slog.String("method", "CleanupPendingUsers"),
		slog.Int64("deleted", n),
		slog.Time("cutoff", cutoff))
	span.SetAttributes(attribute.Int64("users.deleted", n))
	span.SetStatus(codes.Ok, "Cleanup finished")
	return n, nil
}
