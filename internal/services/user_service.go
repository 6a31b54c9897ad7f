package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"eduassist/internal/config"
	"eduassist/internal/models"
	"eduassist/internal/observability"
	contextutils "eduassist/internal/utils"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceInterface defines the interface for user-related operations.
// This allows for easier mocking in tests.
type UserServiceInterface interface {
	CreateUserWithPassword(ctx context.Context, username, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	UpdateLastActive(ctx context.Context, userID int) error
	GetDB() *sql.DB
}

// UserService provides methods for user management.
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewUserService creates a new user service.
func NewUserService(db *sql.DB, cfg *config.Config, logger *observability.Logger) *UserService {
	return &UserService{db: db, cfg: cfg, logger: logger}
}

// GetDB returns the underlying database handle.
func (s *UserService) GetDB() *sql.DB {
	return s.db
}

const userSelectFields = `id, username, email, password_hash, last_active, created_at, updated_at`

// scanUserFromRow scans a database row into a models.User struct
func (s *UserService) scanUserFromRow(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.LastActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// getUserByQuery is a shared method for getting a user by any query
func (s *UserService) getUserByQuery(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	user, err := s.scanUserFromRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found is not an error here
		}
		return nil, contextutils.WrapError(err, "failed to query user")
	}
	return user, nil
}

// CreateUserWithPassword creates a learner account with a bcrypt-hashed
// password. A duplicate username surfaces as RECORD_ALREADY_EXISTS.
func (s *UserService) CreateUserWithPassword(ctx context.Context, username, email, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user_with_password")
	defer observability.FinishSpan(span, &err)

	username = strings.TrimSpace(username)
	if !contextutils.IsValidUsername(username) {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "invalid username", "")
	}
	if email != "" && !contextutils.IsValidEmail(email) {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "invalid email address", "")
	}
	if len(password) < 8 {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "password must be at least 8 characters", "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to hash password")
	}

	user := &models.User{Username: username}
	if email != "" {
		user.Email = sql.NullString{String: email, Valid: true}
	}
	user.PasswordHash = sql.NullString{String: string(hash), Valid: true}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		user.Username, user.Email, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, contextutils.WrapError(contextutils.ErrRecordExists, "username already taken")
		}
		return nil, contextutils.WrapError(err, "failed to insert user")
	}

	s.logger.Info(ctx, "Created user", map[string]interface{}{"user_id": user.ID, "username": user.Username})
	return user, nil
}

// GetUserByID returns the user with the given ID, or nil if not found.
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id",
		observability.AttributeUserID(id),
	)
	defer observability.FinishSpan(span, &err)

	return s.getUserByQuery(ctx, `SELECT `+userSelectFields+` FROM users WHERE id = $1`, id)
}

// GetUserByUsername returns the user with the given username, or nil if not found.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_username")
	defer observability.FinishSpan(span, &err)

	return s.getUserByQuery(ctx, `SELECT `+userSelectFields+` FROM users WHERE username = $1`, username)
}

// AuthenticateUser checks the password against the stored hash. Wrong
// username and wrong password are indistinguishable to the caller.
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user")
	defer observability.FinishSpan(span, &err)

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		return nil, contextutils.ErrInvalidCredentials
	}
	return user, nil
}

// ResetPassword replaces the user's password hash. Used by the admin CLI.
func (s *UserService) ResetPassword(ctx context.Context, username, newPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "reset_password")
	defer observability.FinishSpan(span, &err)

	if len(newPassword) < 8 {
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "password must be at least 8 characters", "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash password")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE username = $2`,
		string(hash), username)
	if err != nil {
		return contextutils.WrapError(err, "failed to update password")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check update result")
	}
	if affected == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// ListUsers returns all users ordered by creation time. Used by the admin CLI.
func (s *UserService) ListUsers(ctx context.Context) (result0 []*models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "list_users")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+userSelectFields+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query users")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.LastActive, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan user")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate user rows")
	}
	return users, nil
}

// UpdateLastActive touches the user's last-active timestamp. Best effort:
// callers log failures rather than failing the request.
func (s *UserService) UpdateLastActive(ctx context.Context, userID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_last_active",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET last_active = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update last active")
	}
	return nil
}
