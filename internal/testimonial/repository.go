package testimonial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/olynsn15/fruitopia-store/internal/domain"
)

var ErrTestimonialNotFound = fmt.Errorf("testimonial %w", domain.ErrNotFound)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Repository is the remote testimonial store.
type Repository interface {
	Insert(ctx context.Context, author *domain.Identity, t *domain.Testimonial) error
	List(ctx context.Context) ([]domain.Testimonial, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Testimonial, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "testimonials_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// Insert records the author's profile and the testimonial in one transaction
// and fills in CreatedAt.
func (r *PostgresRepository) Insert(ctx context.Context, author *domain.Identity, t *domain.Testimonial) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (id, email, display_name, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, display_name = EXCLUDED.display_name, updated_at = NOW()`,
		author.ID, author.Email, author.DisplayName)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO testimonials (id, user_id, message, rating, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at`,
		t.ID, t.UserID, t.Message, t.Rating).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert testimonial: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// List returns every testimonial with its author name, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]domain.Testimonial, error) {
	query := `SELECT id, user_id, author_name, message, rating, created_at
	          FROM testimonials_with_user ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query testimonials: %w", err)
	}
	defer rows.Close()

	testimonials := []domain.Testimonial{}
	for rows.Next() {
		var t domain.Testimonial
		if err := rows.Scan(&t.ID, &t.UserID, &t.AuthorName, &t.Message, &t.Rating, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan testimonial: %w", err)
		}
		testimonials = append(testimonials, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return testimonials, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Testimonial, error) {
	query := `SELECT id, user_id, author_name, message, rating, created_at
	          FROM testimonials_with_user WHERE id = $1`

	var t domain.Testimonial
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.UserID, &t.AuthorName, &t.Message, &t.Rating, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTestimonialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query testimonial by id: %w", err)
	}
	return &t, nil
}

// Delete removes the testimonial only when userID wrote it.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM testimonials WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete testimonial: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrTestimonialNotFound
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
