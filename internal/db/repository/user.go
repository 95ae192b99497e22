package repository

import (
	"context"
	"fmt"

	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStats aggregates moderation counters over all users.
type UserStats struct {
	Users        int `json:"users"`
	StrikesGiven int `json:"strikes_given"`
	Banned       int `json:"banned"`
}

// UserRepository defines operations for managing users and their moderation state.
type UserRepository interface {
	// Upsert creates the user or refreshes the display name, then loads the stored row into user.
	Upsert(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// List retrieves users ordered by ID.
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	// SetPaused sets the paused flag.
	SetPaused(ctx context.Context, id int64, paused bool) (*models.User, error)

	// AddStrike atomically increments the strike count and bans the user once
	// the count reaches banThreshold. newlyBanned is true only for the write
	// that flipped the ban flag.
	AddStrike(ctx context.Context, id int64, banThreshold int) (user *models.User, newlyBanned bool, err error)

	// RemoveStrike atomically decrements the strike count, never below zero.
	// The ban flag is left untouched.
	RemoveStrike(ctx context.Context, id int64) (*models.User, error)

	// SetBanned sets the ban flag.
	SetBanned(ctx context.Context, id int64, banned bool) (*models.User, error)

	// ListBanned returns the IDs of every banned user.
	ListBanned(ctx context.Context) ([]int64, error)

	// Stats returns aggregate counters.
	Stats(ctx context.Context) (*UserStats, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, display_name, strikes, paused, banned, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.DisplayName, &u.Strikes, &u.Paused, &u.Banned, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET display_name = CASE WHEN EXCLUDED.display_name = '' THEN users.display_name ELSE EXCLUDED.display_name END,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	stored, err := scanUser(r.pool.QueryRow(ctx, query, user.ID, user.DisplayName, user.CreatedAt, user.UpdatedAt))
	if err != nil {
		return db.WrapError(err, "upsert user")
	}

	*user = *stored
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get user by id")
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, db.WrapError(err, "list users")
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *userRepository) SetPaused(ctx context.Context, id int64, paused bool) (*models.User, error) {
	query := `
		UPDATE users SET paused = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, paused))
	if err != nil {
		return nil, db.WrapError(err, "set user paused")
	}
	return user, nil
}

func (r *userRepository) AddStrike(ctx context.Context, id int64, banThreshold int) (*models.User, bool, error) {
	// The row lock taken by prev serializes concurrent strikes on the same user.
	query := `
		WITH prev AS (
			SELECT id, banned FROM users WHERE id = $1 FOR UPDATE
		)
		UPDATE users u
		SET strikes = u.strikes + 1,
		    banned = u.banned OR u.strikes + 1 >= $2,
		    updated_at = NOW()
		FROM prev
		WHERE u.id = prev.id
		RETURNING u.id, u.display_name, u.strikes, u.paused, u.banned, u.created_at, u.updated_at, prev.banned`

	u := &models.User{}
	var wasBanned bool
	err := r.pool.QueryRow(ctx, query, id, banThreshold).Scan(
		&u.ID, &u.DisplayName, &u.Strikes, &u.Paused, &u.Banned, &u.CreatedAt, &u.UpdatedAt, &wasBanned,
	)
	if err != nil {
		return nil, false, db.WrapError(err, "add strike")
	}
	return u, u.Banned && !wasBanned, nil
}

func (r *userRepository) RemoveStrike(ctx context.Context, id int64) (*models.User, error) {
	query := `
		UPDATE users SET strikes = GREATEST(strikes - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "remove strike")
	}
	return user, nil
}

func (r *userRepository) SetBanned(ctx context.Context, id int64, banned bool) (*models.User, error) {
	query := `
		UPDATE users SET banned = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, banned))
	if err != nil {
		return nil, db.WrapError(err, "set user banned")
	}
	return user, nil
}

func (r *userRepository) ListBanned(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE banned ORDER BY id`)
	if err != nil {
		return nil, db.WrapError(err, "list banned users")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, db.WrapError(err, "list banned users")
	}
	return ids, nil
}

func (r *userRepository) Stats(ctx context.Context) (*UserStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(strikes), 0), COUNT(*) FILTER (WHERE banned)
		FROM users`

	stats := &UserStats{}
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.Users, &stats.StrikesGiven, &stats.Banned); err != nil {
		return nil, db.WrapError(err, "user stats")
	}
	return stats, nil
}
