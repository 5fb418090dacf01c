package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/esports-booking/models"
)

var (
	ErrBlogPostNotFound = errors.New("blog post not found")
	ErrBlogSlugConflict = errors.New("blog slug already exists")
)

type BlogRepository interface {
	Create(ctx context.Context, post *models.BlogPost) error
	GetBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, limit int) ([]models.BlogPost, error)
	Delete(ctx context.Context, id int) error
}

type postgresBlogRepository struct {
	db *sql.DB
}

func NewPostgresBlogRepository(db *sql.DB) BlogRepository {
	return &postgresBlogRepository{db: db}
}

func (r *postgresBlogRepository) Create(ctx context.Context, p *models.BlogPost) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO blogs (slug, title, content, image_url, author)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		p.Slug, p.Title, p.Content, p.ImageURL, p.Author,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqUniqueViolation {
			return ErrBlogSlugConflict
		}
		return err
	}
	return nil
}

func (r *postgresBlogRepository) GetBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	p := &models.BlogPost{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, slug, title, content, image_url, author, created_at FROM blogs WHERE slug = $1`, slug,
	).Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &p.ImageURL, &p.Author, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlogPostNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresBlogRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM blogs WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

func (r *postgresBlogRepository) List(ctx context.Context, limit int) ([]models.BlogPost, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, title, content, image_url, author, created_at
		FROM blogs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]models.BlogPost, 0)
	for rows.Next() {
		var p models.BlogPost
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &p.ImageURL, &p.Author, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *postgresBlogRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBlogPostNotFound)
}
