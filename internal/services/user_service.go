package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"metronix/internal/config"
	"metronix/internal/models"
	"metronix/internal/observability"
	contextutils "metronix/internal/utils"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted for new accounts
const MinPasswordLength = 8

// UserServiceInterface defines the interface for user-related operations.
// This allows for easier mocking in tests.
type UserServiceInterface interface {
	CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error)
	RegisterCitizen(ctx context.Context, name, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*models.User, error)
	ListUsersWithCounts(ctx context.Context, role *models.Role) ([]models.UserWithCounts, error)
	CountUsersByRole(ctx context.Context) (map[models.Role]int, error)
	UpdateUserPassword(ctx context.Context, userID int, newPassword string) error
	EnsureAdminUserExists(ctx context.Context, name, email, password string) error
}

// CreateUserInput carries the fields an administrator supplies for a new user.
// Password may be empty, in which case the user cannot log in until one is set.
type CreateUserInput struct {
	Name         string
	Email        string
	Password     string
	Role         models.Role
	DepartmentID *int
}

// UserService provides methods for user management.
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

var _ UserServiceInterface = (*UserService)(nil)

const userSelectFields = `id, name, email, password_hash, role, created_at, updated_at`

// NewUserServiceWithLogger creates a new UserService instance with logger
func NewUserServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *UserService {
	return &UserService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser creates a user with any role. A SOLVER also gets its solver
// profile in the same transaction.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user",
		observability.AttributeRole(string(input.Role)),
	)
	defer observability.FinishSpan(span, &err)

	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if name == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "name is required")
	}
	if !contextutils.IsValidEmail(email) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid email address")
	}
	if !input.Role.IsValid() {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid role: %s", input.Role)
	}
	if input.DepartmentID != nil && input.Role != models.RoleSolver {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "only solvers belong to a department")
	}

	var hash sql.NullString
	if input.Password != "" {
		if len(input.Password) < MinPasswordLength {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "password must be at least %d characters", MinPasswordLength)
		}
		hashed, hashErr := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost())
		if hashErr != nil {
			return nil, contextutils.WrapError(hashErr, "failed to hash password")
		}
		hash = sql.NullString{String: string(hashed), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: input.Role, CreatedAt: now, UpdatedAt: now}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		name, email, hash, string(input.Role), now, now,
	).Scan(&user.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordExists, "user already exists")
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to create user: %v", err)
	}

	if input.Role == models.RoleSolver {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO solvers (user_id, department_id, created_at) VALUES ($1, $2, $3)`,
			user.ID, models.NullInt64FromPointer(input.DepartmentID), now,
		)
		if err != nil {
			if isForeignKeyError(err) {
				return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "department %d does not exist", *input.DepartmentID)
			}
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to create solver profile: %v", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to commit user: %v", err)
	}

	span.SetAttributes(observability.AttributeUserID(user.ID))
	s.logger.Info(ctx, "User created", map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
		"email":   contextutils.MaskEmail(user.Email),
	})
	return user, nil
}

// RegisterCitizen is self-signup. It always creates a CITIZEN with a password.
func (s *UserService) RegisterCitizen(ctx context.Context, name, email, password string) (*models.User, error) {
	if s.cfg != nil && s.cfg.IsSignupDisabled() {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "signups are disabled")
	}
	if password == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "password is required")
	}
	return s.CreateUser(ctx, CreateUserInput{Name: name, Email: email, Password: password, Role: models.RoleCitizen})
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	return s.getUserByQuery(ctx, fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userSelectFields), id)
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_email")
	defer observability.FinishSpan(span, &err)

	return s.getUserByQuery(ctx, fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userSelectFields),
		strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserService) getUserByQuery(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load user: %v", err)
	}
	return user, nil
}

// AuthenticateUser checks an email and password. Every failure mode returns
// ErrInvalidCredentials so callers cannot tell which part was wrong.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user")
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, "email and password are required")
	}

	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, contextutils.ErrRecordNotFound) {
			return nil, contextutils.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)) != nil {
		return nil, contextutils.ErrInvalidCredentials
	}

	span.SetAttributes(observability.AttributeUserID(user.ID), observability.AttributeRole(string(user.Role)))
	return user, nil
}

// ListUsersWithCounts lists users newest first with how many complaints each
// filed and how many are assigned to them. role narrows the list when set.
func (s *UserService) ListUsersWithCounts(ctx context.Context, role *models.Role) (result0 []models.UserWithCounts, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "list_users_with_counts")
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT u.id, u.name, u.email, u.role, u.created_at, u.updated_at,
			(SELECT COUNT(*) FROM complaints c WHERE c.citizen_id = u.id) AS complaint_count,
			(SELECT COUNT(*) FROM complaints c WHERE c.solver_id = u.id) AS assigned_count
		FROM users u`
	var args []interface{}
	if role != nil {
		if !role.IsValid() {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid role: %s", *role)
		}
		query += ` WHERE u.role = $1`
		args = append(args, string(*role))
	}
	query += ` ORDER BY u.created_at DESC, u.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list users: %v", err)
	}
	defer func() { _ = rows.Close() }()

	users := []models.UserWithCounts{}
	for rows.Next() {
		var u models.UserWithCounts
		if err = rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.ComplaintCount, &u.AssignedCount); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan user: %v", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list users: %v", err)
	}
	return users, nil
}

// CountUsersByRole returns a count for every role, including zeros
func (s *UserService) CountUsersByRole(ctx context.Context) (result0 map[models.Role]int, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "count_users_by_role")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count users: %v", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.Role]int, len(models.AllRoles()))
	for _, r := range models.AllRoles() {
		counts[r] = 0
	}
	for rows.Next() {
		var role models.Role
		var n int
		if err = rows.Scan(&role, &n); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan user count: %v", err)
		}
		counts[role] = n
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count users: %v", err)
	}
	return counts, nil
}

// UpdateUserPassword replaces a user's password hash
func (s *UserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_user_password", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if len(newPassword) < MinPasswordLength {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "password must be at least %d characters", MinPasswordLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost())
	if err != nil {
		return contextutils.WrapError(err, "failed to hash password")
	}

	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		string(hashed), time.Now().UTC(), userID)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to update password: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to update password: %v", err)
	}
	if n == 0 {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")
	}
	return nil
}

// EnsureAdminUserExists creates the configured administrator on first start
// and resets its password when the configured one changed.
func (s *UserService) EnsureAdminUserExists(ctx context.Context, name, email, password string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_admin_user_exists")
	defer observability.FinishSpan(span, &err)

	if email == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "admin email cannot be empty")
	}
	if password == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "admin password cannot be empty")
	}
	if name == "" {
		name = "Administrator"
	}

	existing, err := s.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, contextutils.ErrRecordNotFound) {
		return contextutils.WrapError(err, "failed to check if admin user exists")
	}

	if existing == nil {
		_, err = s.CreateUser(ctx, CreateUserInput{Name: name, Email: email, Password: password, Role: models.RoleAdmin})
		if err != nil {
			return contextutils.WrapError(err, "failed to create admin user")
		}
		s.logger.Info(ctx, "Admin user created", map[string]interface{}{"email": contextutils.MaskEmail(email)})
		return nil
	}

	if existing.Role != models.RoleAdmin {
		return contextutils.WrapErrorf(contextutils.ErrConflict,
			"user %s exists with role %s; roles cannot be changed", contextutils.MaskEmail(email), existing.Role)
	}

	if existing.PasswordHash.Valid &&
		bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash.String), []byte(password)) == nil {
		s.logger.Info(ctx, "Admin user already exists with correct password", map[string]interface{}{
			"email": contextutils.MaskEmail(email),
		})
		return nil
	}

	if err = s.UpdateUserPassword(ctx, existing.ID, password); err != nil {
		return contextutils.WrapError(err, "failed to update admin password")
	}
	s.logger.Info(ctx, "Admin user password updated", map[string]interface{}{"email": contextutils.MaskEmail(email)})
	return nil
}

func (s *UserService) bcryptCost() int {
	if s.cfg != nil && s.cfg.Auth.BcryptCost >= bcrypt.MinCost {
		return s.cfg.Auth.BcryptCost
	}
	return config.DefaultBcryptCost
}

// isDuplicateKeyError checks if the error is a duplicate key constraint violation
func isDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// PostgreSQL error code 23505 is for unique constraint violations
		return pqErr.Code == "23505"
	}
	return false
}

// isForeignKeyError checks for a foreign key violation (23503)
func isForeignKeyError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

// userSummaryFromNullable builds a summary from LEFT JOIN columns
func userSummaryFromNullable(id sql.NullInt64, name, email sql.NullString) *models.UserSummary {
	if !id.Valid {
		return nil
	}
	return &models.UserSummary{ID: int(id.Int64), Name: name.String, Email: email.String}
}
