package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// UserAdapter implements UserRepository
type UserAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserAdapter creates a new user adapter
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.UserRepository = (*UserAdapter)(nil)

var userSelect = []interface{}{
	"id", "email", "password_hash", "display_name", "avatar_url", "bio", "metadata", "created_at", "updated_at",
}

// Create creates a new user; emails are stored lowercased
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return apperrors.NewValidationError("invalid user metadata")
	}

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	query, args, err := a.db.Insert("users").Rows(goqu.Record{
		"id":            user.ID,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"display_name":  user.DisplayName,
		"avatar_url":    nullString(user.AvatarURL),
		"bio":           nullString(user.Bio),
		"metadata":      metadata,
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("an account with this email already exists")
		}
		return apperrors.NewInternalError("failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("user with id %s not found", id))
}

// GetByEmail retrieves a user by email, case-insensitively
func (a *UserAdapter) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return a.getOne(ctx, goqu.Ex{"email": strings.ToLower(strings.TrimSpace(email))}, "user not found")
}

func (a *UserAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.User, error) {
	query, args, err := a.db.Select(userSelect...).From("users").Where(where).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	user, err := scanUser(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user", err)
	}
	return user, nil
}

// GetByIDs retrieves users by ID; missing ids are skipped
func (a *UserAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error) {
	if len(ids) == 0 {
		return []*entities.User{}, nil
	}

	query, args, err := a.db.Select(userSelect...).From("users").Where(goqu.Ex{"id": ids}).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get users", err)
	}
	defer rows.Close()

	users := make([]*entities.User, 0, len(ids))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate users", err)
	}
	return users, nil
}

// Update updates profile fields and metadata
func (a *UserAdapter) Update(ctx context.Context, user *entities.User) error {
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return apperrors.NewValidationError("invalid user metadata")
	}

	user.UpdatedAt = time.Now()
	query, args, err := a.db.Update("users").Set(goqu.Record{
		"display_name": user.DisplayName,
		"avatar_url":   nullString(user.AvatarURL),
		"bio":          nullString(user.Bio),
		"metadata":     metadata,
		"updated_at":   user.UpdatedAt,
	}).Where(goqu.Ex{"id": user.ID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update user", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", user.ID))
	}
	return nil
}

func scanUser(row rowScanner) (*entities.User, error) {
	user := &entities.User{}
	var (
		avatar, bio sql.NullString
		metadata    []byte
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&avatar, &bio, &metadata, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.AvatarURL = avatar.String
	user.Bio = bio.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &user.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode user metadata: %w", err)
		}
	}
	return user, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
