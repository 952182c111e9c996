package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-complaint-auth/internal/api"
	"github.com/FACorreiaa/go-complaint-auth/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the credential store. Lookups that find nothing return an error
// wrapping api.ErrNotFound.
type AuthRepo interface {
	PhoneExists(ctx context.Context, phone string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// CreatePendingUser inserts the user and its first verification token in one
	// transaction. Unique violations map to ErrDuplicatePhone / ErrDuplicateEmail.
	CreatePendingUser(ctx context.Context, u types.NewUser, vt types.VerificationToken) (int64, error)

	GetUserByID(ctx context.Context, userID int64) (*types.UserProfile, error)
	GetUserByPhone(ctx context.Context, phone string) (*types.UserProfile, error)
	GetUserByEmail(ctx context.Context, email string) (*types.UserProfile, error)
	GetCredentials(ctx context.Context, userID int64) (*types.CredentialRecord, error)
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error

	StoreRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string, userID int64) (*types.RefreshToken, error)
	// RotateRefreshToken swaps oldToken for newToken in a single conditional
	// UPDATE. It returns api.ErrNotFound when the old token is no longer live.
	RotateRefreshToken(ctx context.Context, userID int64, oldToken, newToken string, newExpiresAt time.Time) error
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)
	DeleteAllRefreshTokens(ctx context.Context, userID int64) (int64, error)

	// IssueVerificationToken marks every unused token of the user as used and
	// inserts vt, in one transaction.
	IssueVerificationToken(ctx context.Context, vt types.VerificationToken) error
	GetVerificationToken(ctx context.Context, token string) (*types.VerificationToken, error)
	// ConsumeVerificationCode and ConsumeVerificationToken mark the matching
	// unused, unexpired token as used and activate the user atomically.
	ConsumeVerificationCode(ctx context.Context, userID int64, code string, now time.Time) error
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (int64, error)

	CreatePasswordResetToken(ctx context.Context, prt types.PasswordResetToken) error
	// ResetPassword deletes the reset token, stores the new hash and deletes all
	// refresh tokens of the user, in one transaction.
	ResetPassword(ctx context.Context, token, newHash string, now time.Time) (int64, error)
	// ChangePassword stores the new hash and deletes all refresh tokens of the user.
	ChangePassword(ctx context.Context, userID int64, newHash string) error

	DeletePendingUsers(ctx context.Context, createdBefore time.Time) (int64, error)
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool api.DBTX
}

func NewPostgresAuthRepo(pgpool api.DBTX, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const profileColumns = `id, email, phone, first_name, last_name, role, status, email_verified, phone_verified,
       city_corporation_code, thana_id, ward, zone, last_login_at, created_at, updated_at`

func scanProfile(row pgx.Row) (*types.UserProfile, error) {
	var (
		u      types.UserProfile
		role   string
		status string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.FirstName, &u.LastName, &role, &status,
		&u.EmailVerified, &u.PhoneVerified,
		&u.CityCorporationCode, &u.ThanaID, &u.Ward, &u.Zone,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = types.Role(role)
	u.Status = types.UserStatus(status)
	return &u, nil
}

func dbSpan(ctx context.Context, name, op, table string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", op),
		attribute.String("db.sql.table", table),
	}, attrs...)
	return otel.Tracer("AuthRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// PhoneExists implements AuthRepo.
func (r *PostgresAuthRepo) PhoneExists(ctx context.Context, phone string) (bool, error) {
	ctx, span := dbSpan(ctx, "PhoneExists", "SELECT", "users")
	defer span.End()

	var exists bool
	err := r.pgpool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE phone = $1)`, phone).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check phone", slog.String("method", "PhoneExists"), slog.Any("error", err))
		fail(span, err, "DB SELECT failed")
		return false, fmt.Errorf("database error checking phone: %w", err)
	}
	return exists, nil
}

// EmailExists implements AuthRepo.
func (r *PostgresAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	ctx, span := dbSpan(ctx, "EmailExists", "SELECT", "users")
	defer span.End()

	var exists bool
	err := r.pgpool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check email", slog.String("method", "EmailExists"), slog.Any("error", err))
		fail(span, err, "DB SELECT failed")
		return false, fmt.Errorf("database error checking email: %w", err)
	}
	return exists, nil
}

// mapUniqueViolation turns a 23505 on the users table into the matching flow error.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case "users_phone_key":
		return ErrDuplicatePhone
	case "users_email_key":
		return ErrDuplicateEmail
	}
	return fmt.Errorf("%w: %s", api.ErrConflict, pgErr.ConstraintName)
}

// CreatePendingUser implements AuthRepo.
func (r *PostgresAuthRepo) CreatePendingUser(ctx context.Context, u types.NewUser, vt types.VerificationToken) (int64, error) {
	ctx, span := dbSpan(ctx, "CreatePendingUser", "INSERT", "users")
	defer span.End()

	l := r.logger.With(slog.String("method", "CreatePendingUser"))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		fail(span, err, "Transaction begin failed")
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (first_name, last_name, phone, email, password_hash, role, status, email_verified,
		                   city_corporation_code, thana_id, ward, zone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		u.FirstName, u.LastName, u.Phone, u.Email, u.PasswordHash, string(u.Role), string(u.Status), u.EmailVerified,
		u.CityCorporationCode, u.ThanaID, u.Ward, u.Zone,
	).Scan(&userID)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			l.WarnContext(ctx, "Unique constraint rejected registration", slog.Any("error", mapped))
			fail(span, mapped, "Unique violation")
			return 0, mapped
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		fail(span, err, "DB INSERT failed")
		return 0, fmt.Errorf("database error inserting user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO email_verification_tokens (id, token, code, user_id, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, FALSE)`,
		vt.ID, vt.Token, vt.Code, userID, vt.ExpiresAt)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert verification token", slog.Any("error", err))
		fail(span, err, "DB INSERT failed")
		return 0, fmt.Errorf("database error inserting verification token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit registration", slog.Any("error", err))
		fail(span, err, "Transaction commit failed")
		return 0, fmt.Errorf("failed to commit registration: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.user.id", userID))
	span.SetStatus(codes.Ok, "User created")
	return userID, nil
}

func (r *PostgresAuthRepo) getUser(ctx context.Context, method, where string, arg any) (*types.UserProfile, error) {
	ctx, span := dbSpan(ctx, method, "SELECT", "users")
	defer span.End()

	u, err := scanProfile(r.pgpool.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE `+where+` = $1`, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "User not found")
		return nil, fmt.Errorf("user not found: %w", api.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch user", slog.String("method", method), slog.Any("error", err))
		fail(span, err, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	span.SetStatus(codes.Ok, "User found")
	return u, nil
}

// GetUserByID implements AuthRepo.
func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID int64) (*types.UserProfile, error) {
	return r.getUser(ctx, "GetUserByID", "id", userID)
}

// GetUserByPhone implements AuthRepo.
func (r *PostgresAuthRepo) GetUserByPhone(ctx context.Context, phone string) (*types.UserProfile, error) {
	return r.getUser(ctx, "GetUserByPhone", "phone", phone)
}

// GetUserByEmail implements AuthRepo.
func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserProfile, error) {
	return r.getUser(ctx, "GetUserByEmail", "email", email)
}

// GetCredentials implements AuthRepo.
func (r *PostgresAuthRepo) GetCredentials(ctx context.Context, userID int64) (*types.CredentialRecord, error) {
	ctx, span := dbSpan(ctx, "GetCredentials", "SELECT", "users", attribute.Int64("db.user.id", userID))
	defer span.End()

	cred := &types.CredentialRecord{UserID: userID}
	err := r.pgpool.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&cred.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("credentials not found: %w", api.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch credentials", slog.String("method", "GetCredentials"), slog.Any("error", err))
		fail(span, err, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching credentials: %w", err)
	}
	return cred, nil
}

// UpdateLastLogin implements AuthRepo.
func (r *PostgresAuthRepo) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	ctx, span := dbSpan(ctx, "UpdateLastLogin", "UPDATE", "users", attribute.Int64("db.user.id", userID))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateLastLogin"), slog.Int64("userID", userID))

	tag, err := r.pgpool.Exec(ctx, `UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`, at, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update last login", slog.Any("error", err))
		fail(span, err, "DB UPDATE failed")
		return fmt.Errorf("database error updating last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", api.ErrNotFound)
	}
	span.SetStatus(codes.Ok, "Last login updated")
	return nil
}

// StoreRefreshToken implements AuthRepo.
func (r *PostgresAuthRepo) StoreRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	ctx, span := dbSpan(ctx, "StoreRefreshToken", "INSERT", "refresh_tokens", attribute.Int64("db.user.id", userID))
	defer span.End()

	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to store refresh token", slog.String("method", "StoreRefreshToken"), slog.Any("error", err))
		fail(span, err, "DB INSERT failed")
		return fmt.Errorf("store refresh token: db insert failed: %w", err)
	}
	span.SetStatus(codes.Ok, "Refresh token stored")
	return nil
}

// GetRefreshToken implements AuthRepo.
func (r *PostgresAuthRepo) GetRefreshToken(ctx context.Context, token string, userID int64) (*types.RefreshToken, error) {
	ctx, span := dbSpan(ctx, "GetRefreshToken", "SELECT", "refresh_tokens", attribute.Int64("db.user.id", userID))
	defer span.End()

	rt := &types.RefreshToken{Token: token, UserID: userID}
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, expires_at, created_at FROM refresh_tokens WHERE token = $1 AND user_id = $2`,
		token, userID).Scan(&rt.ID, &rt.ExpiresAt, &rt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("refresh token not found: %w", api.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch refresh token", slog.String("method", "GetRefreshToken"), slog.Any("error", err))
		fail(span, err, "DB SELECT failed")
		return nil, fmt.Errorf("get refresh token: query failed: %w", err)
	}
	return rt, nil
}

// RotateRefreshToken implements AuthRepo.
func (r *PostgresAuthRepo) RotateRefreshToken(ctx context.Context, userID int64, oldToken, newToken string, newExpiresAt time.Time) error {
	ctx, span := dbSpan(ctx, "RotateRefreshToken", "UPDATE", "refresh_tokens", attribute.Int64("db.user.id", userID))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
		UPDATE refresh_tokens
		SET token = $1, expires_at = $2
		WHERE token = $3 AND user_id = $4 AND expires_at > now()`,
		newToken, newExpiresAt, oldToken, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to rotate refresh token", slog.String("method", "RotateRefreshToken"), slog.Any("error", err))
		fail(span, err, "DB UPDATE failed")
		return fmt.Errorf("rotate refresh token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Ok, "Refresh token already rotated")
		return fmt.Errorf("refresh token no longer live: %w", api.ErrNotFound)
	}
	span.SetStatus(codes.Ok, "Refresh token rotated")
	return nil
}

// DeleteRefreshToken implements AuthRepo. Deleting a missing token is not an error.
func (r *PostgresAuthRepo) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	ctx, span := dbSpan(ctx, "DeleteRefreshToken", "DELETE", "refresh_tokens")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete refresh token", slog.String("method", "DeleteRefreshToken"), slog.Any("error", err))
		fail(span, err, "DB DELETE failed")
		return false, fmt.Errorf("delete refresh token: db delete failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllRefreshTokens implements AuthRepo.
func (r *PostgresAuthRepo) DeleteAllRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	ctx, span := dbSpan(ctx, "DeleteAllRefreshTokens", "DELETE", "refresh_tokens", attribute.Int64("db.user.id", userID))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete refresh tokens", slog.String("method", "DeleteAllRefreshTokens"), slog.Any("error", err))
		fail(span, err, "DB DELETE failed")
		return 0, fmt.Errorf("delete all refresh tokens: db delete failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// IssueVerificationToken implements AuthRepo.
func (r *PostgresAuthRepo) IssueVerificationToken(ctx context.Context, vt types.VerificationToken) error {
	ctx, span := dbSpan(ctx, "IssueVerificationToken", "INSERT", "email_verification_tokens", attribute.Int64("db.user.id", vt.UserID))
	defer span.End()

	l := r.logger.With(slog.String("method", "IssueVerificationToken"), slog.Int64("userID", vt.UserID))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		fail(span, err, "Transaction begin failed")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE email_verification_tokens SET used = TRUE WHERE user_id = $1 AND used = FALSE`,
		vt.UserID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to supersede verification tokens", slog.Any("error", err))
		fail(span, err, "DB UPDATE failed")
		return fmt.Errorf("database error superseding verification tokens: %w", err)
	}
	l.DebugContext(ctx, "Superseded previous verification tokens", slog.Int64("count", tag.RowsAffected()))

	_, err = tx.Exec(ctx, `
		INSERT INTO email_verification_tokens (id, token, code, user_id, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, FALSE)`,
		vt.ID, vt.Token, vt.Code, vt.UserID, vt.ExpiresAt)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert verification token", slog.Any("error", err))
		fail(span, err, "DB INSERT failed")
		return fmt.Errorf("database error inserting verification token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit verification token", slog.Any("error", err))
		fail(span, err, "Transaction commit failed")
		return fmt.Errorf("failed to commit verification token: %w", err)
	}
	span.SetStatus(codes.Ok, "Verification token issued")
	return nil
}

// GetVerificationToken implements AuthRepo.
func (r *PostgresAuthRepo) GetVerificationToken(ctx context.Context, token string) (*types.VerificationToken, error) {
	ctx, span := dbSpan(ctx, "GetVerificationToken", "SELECT", "email_verification_tokens")
	defer span.End()

	vt := &types.VerificationToken{Token: token}
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, code, user_id, expires_at, used, created_at FROM email_verification_tokens WHERE token = $1`,
		token).Scan(&vt.ID, &vt.Code, &vt.UserID, &vt.ExpiresAt, &vt.Used, &vt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("verification token not found: %w", api.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch verification token", slog.String("method", "GetVerificationToken"), slog.Any("error", err))
		fail(span, err, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching verification token: %w", err)
	}
	return vt, nil
}

// activateUser never lifts a suspension.
const activateUser = `
	UPDATE users
	SET email_verified = TRUE,
	    status = CASE WHEN status = 'SUSPENDED' THEN status ELSE 'ACTIVE' END,
	    updated_at = now()
	WHERE id = $1`

// ConsumeVerificationCode implements AuthRepo.
func (r *PostgresAuthRepo) ConsumeVerificationCode(ctx context.Context, userID int64, code string, now time.Time) error {
	ctx, span := dbSpan(ctx, "ConsumeVerificationCode", "UPDATE", "email_verification_tokens", attribute.Int64("db.user.id", userID))
	defer span.End()

	l := r.logger.With(slog.String("method", "ConsumeVerificationCode"), slog.Int64("userID", userID))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		fail(span, err, "Transaction begin failed")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE email_verification_tokens
		SET used = TRUE
		WHERE user_id = $1 AND code = $2 AND used = FALSE AND expires_at > $3`,
		userID, code, now)
	if err != nil {
		l.ErrorContext(ctx, "Failed to consume verification code", slog.Any("error", err))
		fail(span, err, "DB UPDATE failed")
		return fmt.Errorf("database error consuming verification code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Ok, "No matching code")
		return fmt.Errorf("verification code not found: %w", api.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, activateUser, userID); err != nil {
		l.ErrorContext(ctx, "Failed to activate user", slog.Any("error", err))
		fail(span, err, "DB UPDATE failed")
		return fmt.Errorf("database error activating user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit verification", slog.Any("error", err))
		fail(span, err, "Transaction commit failed")
		return fmt.Errorf("failed to commit verification: %w", err)
	}
	span.SetStatus(codes.Ok, "User verified")
	return nil
}

// ConsumeVerificationToken implements AuthRepo.
func (r *PostgresAuthRepo) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (int64, error) {
	ctx, span := dbSpan(ctx, "ConsumeVerificationToken", "UPDATE", "email_verification_tokens")
	defer span.End()

	l := r.logger.With(slog.String("method", "ConsumeVerificationToken"))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		fail(span, err, "Transaction begin failed")
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx, `
		UPDATE email_verification_tokens
		SET used = TRUE
		WHERE token = $1 AND used = FALSE AND expires_at > $2
		RETURNING user_id`,
		token, now).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "No matching token")
		return 0, fmt.Errorf("verification token not found: %w", api.ErrNotFound)
	}
	if err != nil {
		l.ErrorContext(ctx, "Failed to consume verification token", slog.Any("error", err))
		fail(span, err, "DB UPDATE failed")
		return 0, fmt.Errorf("database error consuming verification token: %w", err)
	}

	if _, err := tx.Exec(ctx, activateUser, userID); err != nil {
		l.ErrorContext(ctx, "Failed to activate user", slog.Any("error", err))
		fail(span, err, "DB UPDATE failed")
		return 0, fmt.Errorf("database error activating user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit verification", slog.Any("error", err))
		fail(span, err, "Transaction commit failed")
		return 0, fmt.Errorf("failed to commit verification: %w", err)
	}
	span.SetStatus(codes.Ok, "User verified")
	return userID, nil
}

// CreatePasswordResetToken implements AuthRepo.
func (r *PostgresAuthRepo) CreatePasswordResetToken(ctx context.Context, prt types.PasswordResetToken) error {
	ctx, span := dbSpan(ctx, "CreatePasswordResetToken", "INSERT", "password_reset_tokens", attribute.Int64("db.user.id", prt.UserID))
	defer span.End()

	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO password_reset_tokens (id, token, user_id, expires_at) VALUES ($1, $2, $3, $4)`,
		prt.ID, prt.Token, prt.UserID, prt.ExpiresAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to store password reset token", slog.String("method", "CreatePasswordResetToken"), slog.Any("error", err))
		fail(span, err, "DB INSERT failed")
		return fmt.Errorf("database error storing reset token: %w", err)
	}
	span.SetStatus(codes.Ok, "Reset token stored")
	return nil
}

// ResetPassword implements AuthRepo.
func (r *PostgresAuthRepo) ResetPassword(ctx context.Context, token, newHash string, now time.Time) (int64, error) {
	ctx, span := dbSpan(ctx, "ResetPassword", "UPDATE", "users")
	defer span.End()

	l := r.logger.With(slog.String("method", "ResetPassword"))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		fail(span, err, "Transaction begin failed")
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx,
		`DELETE FROM password_reset_tokens WHERE token = $1 AND expires_at > $2 RETURNING user_id`,
		token, now).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "No matching reset token")
		return 0, fmt.Errorf("reset token not found: %w", api.ErrNotFound)
	}
	if err != nil {
		l.ErrorContext(ctx, "Failed to consume reset token", slog.Any("error", err))
		fail(span, err, "DB DELETE failed")
		return 0, fmt.Errorf("database error consuming reset token: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, newHash, userID); err != nil {
		l.ErrorContext(ctx, "Failed to update password", slog.Any("error", err))
		fail(span, err, "DB UPDATE failed")
		return 0, fmt.Errorf("database error updating password: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to revoke sessions", slog.Any("error", err))
		fail(span, err, "DB DELETE failed")
		return 0, fmt.Errorf("database error revoking sessions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit password reset", slog.Any("error", err))
		fail(span, err, "Transaction commit failed")
		return 0, fmt.Errorf("failed to commit password reset: %w", err)
	}
	l.InfoContext(ctx, "Password reset", slog.Int64("userID", userID), slog.Int64("revokedSessions", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "Password reset")
	return userID, nil
}

// ChangePassword implements AuthRepo.
func (r *PostgresAuthRepo) ChangePassword(ctx context.Context, userID int64, newHash string) error {
	ctx, span := dbSpan(ctx, "ChangePassword", "UPDATE", "users", attribute.Int64("db.user.id", userID))
	defer span.End()

	l := r.logger.With(slog.String("method", "ChangePassword"), slog.Int64("userID", userID))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		fail(span, err, "Transaction begin failed")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, newHash, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update password", slog.Any("error", err))
		fail(span, err, "DB UPDATE failed")
		return fmt.Errorf("database error updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", api.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		l.ErrorContext(ctx, "Failed to revoke sessions", slog.Any("error", err))
		fail(span, err, "DB DELETE failed")
		return fmt.Errorf("database error revoking sessions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit password change", slog.Any("error", err))
		fail(span, err, "Transaction commit failed")
		return fmt.Errorf("failed to commit password change: %w", err)
	}
	span.SetStatus(codes.Ok, "Password changed")
	return nil
}

// DeletePendingUsers implements AuthRepo. Verified users are never matched.
func (r *PostgresAuthRepo) DeletePendingUsers(ctx context.Context, createdBefore time.Time) (int64, error) {
	ctx, span := dbSpan(ctx, "DeletePendingUsers", "DELETE", "users")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
		DELETE FROM users
		WHERE status = 'PENDING' AND email_verified = FALSE AND created_at < $1`,
		createdBefore)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete pending users", slog.String("method", "DeletePendingUsers"), slog.Any("error", err))
		fail(span, err, "DB DELETE failed")
		return 0, fmt.Errorf("database error deleting pending users: %w", err)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "Pending users deleted")
	return tag.RowsAffected(), nil
}
