// internal/repository/postgres/profile_repo.go
package postgres

import (
	"context"
	"errors"

	"fleetdesk-service/internal/domain/auth"
	xerrors "fleetdesk-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfile loads the profile row for a user. UserLevel is nil when the
// column is NULL.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*auth.Profile, error) {
	query := `SELECT user_level FROM profiles WHERE id = $1`

	profile := auth.Profile{ID: userID}
	err := r.db.QueryRow(ctx, query, userID).Scan(&profile.UserLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to get profile")
	}

	return &profile, nil
}
