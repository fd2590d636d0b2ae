package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/restory/server/internal/domain"
)

// ProfileService implements domain.ProfileService using PostgreSQL.
type ProfileService struct {
	db *pgxpool.Pool
}

// Compile-time check that ProfileService implements domain.ProfileService.
var _ domain.ProfileService = (*ProfileService)(nil)

// NewProfileService creates a new PostgreSQL-backed profile service.
func NewProfileService(db *pgxpool.Pool) *ProfileService {
	return &ProfileService{db: db}
}

// GetProfile retrieves the profile for a user. A user who has never
// saved a profile gets an empty one back rather than a not-found error.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if !validUUID(userID) {
		return nil, domain.ErrUserNotFound
	}

	query := `SELECT user_id::text, bio, date_of_birth, location_city,
		location_country, interests, updated_at
		FROM profiles WHERE user_id = $1`

	var (
		p   domain.Profile
		dob *time.Time
	)
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Bio, &dob, &p.Location.City, &p.Location.Country,
		&p.Interests, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.Profile{UserID: userID, Interests: []string{}}, nil
		}
		return nil, domain.Internal(err, "profile.get", "failed to get profile")
	}

	p.DateOfBirth = dob
	if p.Interests == nil {
		p.Interests = []string{}
	}
	return &p, nil
}

// UpsertProfile creates or replaces the profile for a user.
func (s *ProfileService) UpsertProfile(ctx context.Context, userID string, params domain.UpsertProfileParams) (*domain.Profile, error) {
	if !validUUID(userID) {
		return nil, domain.ErrUserNotFound
	}
	if len(params.Bio) > domain.MaxBioLength {
		return nil, domain.ErrBioTooLong
	}

	interests := params.Interests
	if interests == nil {
		interests = []string{}
	}

	query := `INSERT INTO profiles
		(user_id, bio, date_of_birth, location_city, location_country, interests, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id) DO UPDATE SET
			bio = EXCLUDED.bio,
			date_of_birth = EXCLUDED.date_of_birth,
			location_city = EXCLUDED.location_city,
			location_country = EXCLUDED.location_country,
			interests = EXCLUDED.interests,
			updated_at = now()
		RETURNING user_id::text, bio, date_of_birth, location_city,
			location_country, interests, updated_at`

	var (
		p   domain.Profile
		dob *time.Time
	)
	err := s.db.QueryRow(ctx, query,
		userID, params.Bio, params.DateOfBirth,
		params.Location.City, params.Location.Country, interests,
	).Scan(
		&p.UserID, &p.Bio, &dob, &p.Location.City, &p.Location.Country,
		&p.Interests, &p.UpdatedAt,
	)
	if err != nil {
		// The foreign key to users fails for unknown user IDs.
		if isForeignKeyViolation(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal(err, "profile.upsert", "failed to save profile")
	}

	p.DateOfBirth = dob
	if p.Interests == nil {
		p.Interests = []string{}
	}
	return &p, nil
}
