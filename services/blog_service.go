package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gosimple/slug"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
	"github.com/Dosada05/esports-booking/storage"
)

const (
	maxSlugAttempts    = 50
	defaultBlogLimit   = 20
	maxBlogListLimit   = 100
	fallbackPostSlug   = "post"
	maxBlogTitleLength = 200
)

type CreateBlogPostInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type BlogService interface {
	Create(ctx context.Context, actor models.Actor, input CreateBlogPostInput, cover *FileInput) (*models.BlogPost, error)
	List(ctx context.Context, limit int) ([]models.BlogPost, error)
	GetBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	Delete(ctx context.Context, actor models.Actor, id int) error
}

type blogService struct {
	blogRepo repositories.BlogRepository
	uploader storage.FileUploader
	activity ActivityLogger
	logger   *slog.Logger
}

func NewBlogService(blogRepo repositories.BlogRepository, uploader storage.FileUploader, activity ActivityLogger, logger *slog.Logger) BlogService {
	if activity == nil {
		activity = nopActivity{}
	}
	return &blogService{
		blogRepo: blogRepo,
		uploader: uploader,
		activity: activity,
		logger:   logger,
	}
}

func (s *blogService) Create(ctx context.Context, actor models.Actor, input CreateBlogPostInput, cover *FileInput) (*models.BlogPost, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrValidationFailed)
	}
	if len([]rune(title)) > maxBlogTitleLength {
		return nil, fmt.Errorf("%w: title is too long", ErrValidationFailed)
	}

	post := &models.BlogPost{
		Title:   title,
		Content: content,
		Author:  actor.Name,
	}

	var coverKey string
	if !cover.empty() {
		key, url, err := uploadImage(ctx, s.uploader, "blog", "cover", cover)
		if err != nil {
			return nil, err
		}
		coverKey = key
		post.ImageURL = url
	}

	base := slug.Make(title)
	if base == "" {
		base = fallbackPostSlug
	}

	// Слаг уникален: при коллизии добавляется числовой суффикс.
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		candidate := base
		if attempt > 1 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}
		exists, err := s.blogRepo.SlugExists(ctx, candidate)
		if err != nil {
			deleteUploaded(ctx, s.uploader, coverKey, s.logger)
			return nil, err
		}
		if exists {
			continue
		}

		post.Slug = candidate
		err = s.blogRepo.Create(ctx, post)
		if errors.Is(err, repositories.ErrBlogSlugConflict) {
			continue
		}
		if err != nil {
			deleteUploaded(ctx, s.uploader, coverKey, s.logger)
			return nil, fmt.Errorf("failed to create blog post: %w", err)
		}

		s.activity.Record(ctx, actor, fmt.Sprintf("Published blog post: %s", post.Title))
		return post, nil
	}

	deleteUploaded(ctx, s.uploader, coverKey, s.logger)
	return nil, fmt.Errorf("%w: could not allocate a unique slug for %q", ErrValidationFailed, title)
}

func (s *blogService) List(ctx context.Context, limit int) ([]models.BlogPost, error) {
	return s.blogRepo.List(ctx, clampLimit(limit, defaultBlogLimit, maxBlogListLimit))
}

func (s *blogService) GetBySlug(ctx context.Context, postSlug string) (*models.BlogPost, error) {
	return s.blogRepo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(postSlug)))
}

func (s *blogService) Delete(ctx context.Context, actor models.Actor, id int) error {
	if !actor.IsAdmin() {
		return ErrForbiddenOperation
	}
	if err := s.blogRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, fmt.Sprintf("Deleted blog post #%d", id))
	return nil
}
