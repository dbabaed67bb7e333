package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists identities.
type Repository interface {
	FindByID(ctx context.Context, id string) (Identity, error)
	// Upsert creates the identity from profile or refreshes its profile fields.
	// A nil phone keeps whatever number is already stored.
	Upsert(ctx context.Context, profile Profile, phone *string) (Identity, error)
	// UpdateContact writes a shared contact onto an existing identity and
	// returns ErrNotFound if there is none; it never creates rows.
	UpdateContact(ctx context.Context, id string, update ContactUpdate) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, first_name, last_name, username, phone_number, language_code, is_premium, created_at, updated_at`

// FindByID fetches an identity by platform id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
	return scanIdentity(row)
}

// Upsert inserts or refreshes the identity in a single statement so that a
// concurrent contact sync never observes a half-written row.
func (r *PostgresRepository) Upsert(ctx context.Context, p Profile, phone *string) (Identity, error) {
	const query = `
        INSERT INTO users (id, first_name, last_name, username, phone_number, language_code, is_premium, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
        ON CONFLICT (id) DO UPDATE SET
            first_name    = EXCLUDED.first_name,
            last_name     = EXCLUDED.last_name,
            username      = EXCLUDED.username,
            phone_number  = COALESCE(EXCLUDED.phone_number, users.phone_number),
            language_code = EXCLUDED.language_code,
            is_premium    = EXCLUDED.is_premium,
            updated_at    = now()
        RETURNING ` + selectColumns
	row := r.db.QueryRow(ctx, query, p.ID, p.FirstName, p.LastName, p.Username, phone, p.LanguageCode, p.IsPremium)
	return scanIdentity(row)
}

// UpdateContact stores the shared phone number and display fields.
func (r *PostgresRepository) UpdateContact(ctx context.Context, id string, u ContactUpdate) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users
        SET phone_number = $2, first_name = $3, last_name = $4, username = $5, updated_at = now()
        WHERE id = $1`, id, u.PhoneNumber, u.FirstName, u.LastName, u.Username)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var (
		u                                  Identity
		firstName, lastName, username, lang *string
	)
	err := row.Scan(&u.ID, &firstName, &lastName, &username, &u.PhoneNumber, &lang, &u.IsPremium, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	u.FirstName = deref(firstName)
	u.LastName = deref(lastName)
	u.Username = deref(username)
	u.LanguageCode = deref(lang)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
