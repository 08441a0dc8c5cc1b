package repository

import (
	"context"
	"errors"

	"impostor/internal/cache"
	"impostor/internal/models"

	"gorm.io/gorm"
)

// ThemeRepository defines persistence operations for word-pack themes.
type ThemeRepository interface {
	Create(ctx context.Context, theme *models.Theme) error
	GetByID(ctx context.Context, id string) (*models.Theme, error)
	GetByAccessCode(ctx context.Context, code string) (*models.Theme, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Theme, error)
	Update(ctx context.Context, theme *models.Theme) error
	ListPublic(ctx context.Context) ([]models.Theme, error)
	AccessCodeExists(ctx context.Context, code string) (bool, error)
}

type themeRepository struct {
	db *gorm.DB
}

// NewThemeRepository returns a new ThemeRepository implementation.
func NewThemeRepository(db *gorm.DB) ThemeRepository {
	return &themeRepository{db: db}
}

func (r *themeRepository) Create(ctx context.Context, theme *models.Theme) error {
	if err := r.db.WithContext(ctx).Create(theme).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("theme access code already in use")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *themeRepository) GetByID(ctx context.Context, id string) (*models.Theme, error) {
	var theme models.Theme
	if err := readDB(r.db).WithContext(ctx).First(&theme, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Theme", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &theme, nil
}

func (r *themeRepository) GetByAccessCode(ctx context.Context, code string) (*models.Theme, error) {
	if cached := cache.GetTheme(ctx, code); cached != nil {
		return cached, nil
	}

	var theme models.Theme
	if err := readDB(r.db).WithContext(ctx).First(&theme, "access_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Theme", code)
		}
		return nil, models.NewInternalError(err)
	}
	cache.SetTheme(ctx, &theme)
	return &theme, nil
}

func (r *themeRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.Theme, error) {
	var theme models.Theme
	if err := readDB(r.db).WithContext(ctx).First(&theme, "payment_id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Theme", paymentID)
		}
		return nil, models.NewInternalError(err)
	}
	return &theme, nil
}

func (r *themeRepository) Update(ctx context.Context, theme *models.Theme) error {
	if err := r.db.WithContext(ctx).Save(theme).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateTheme(ctx, theme.AccessCode)
	return nil
}

func (r *themeRepository) ListPublic(ctx context.Context) ([]models.Theme, error) {
	if cached := cache.GetPublicThemes(ctx); cached != nil {
		return cached, nil
	}

	var themes []models.Theme
	if err := readDB(r.db).WithContext(ctx).
		Where("is_public = ? AND approved = ?", true, true).
		Order("titulo asc").
		Find(&themes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.SetPublicThemes(ctx, themes)
	return themes, nil
}

func (r *themeRepository) AccessCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Theme{}).Where("access_code = ?", code).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
