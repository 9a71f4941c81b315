package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/thankatech/backend/internal/models"
	"github.com/thankatech/backend/internal/pkg/apperror"
	"github.com/thankatech/backend/internal/repository"
	"github.com/thankatech/backend/internal/storage"
	"github.com/thankatech/backend/internal/validation"
)

// TechnicianStore описывает зависимости сервиса от хранилища техников.
type TechnicianStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Technician, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params repository.UpdateProfileParams) error
	SetPhoto(ctx context.Context, userID uuid.UUID, photoID uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) ([]models.TechnicianListItem, error)
}

// UniqueIDReader находит пользователя по человекочитаемому идентификатору.
type UniqueIDReader interface {
	GetByUniqueID(ctx context.Context, uniqueID string) (*models.User, error)
}

// MediaStore хранит метаданные загруженных файлов.
type MediaStore interface {
	Create(ctx context.Context, file *models.MediaFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error)
}

// TechnicianService — профили техников, публичный каталог и фото.
type TechnicianService struct {
	technicians TechnicianStore
	users       UniqueIDReader
	media       MediaStore
	photos      *storage.PhotoStorage
}

// NewTechnicianService создаёт сервис техников.
func NewTechnicianService(technicians TechnicianStore, users UniqueIDReader, media MediaStore, photos *storage.PhotoStorage) *TechnicianService {
	return &TechnicianService{
		technicians: technicians,
		users:       users,
		media:       media,
		photos:      photos,
	}
}

// PublicProfile — профиль техника вместе с именем для публичной страницы.
type PublicProfile struct {
	User       *models.User       `json:"user"`
	Technician *models.Technician `json:"technician"`
}

// GetProfile возвращает профиль техника.
func (s *TechnicianService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Technician, error) {
	tech, err := s.technicians.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			return nil, apperror.ErrTechnicianNotFound
		}
		return nil, err
	}
	return tech, nil
}

// GetPublicProfile возвращает профиль по unique_id для страницы чаевых.
func (s *TechnicianService) GetPublicProfile(ctx context.Context, uniqueID string) (*PublicProfile, error) {
	user, err := s.users.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrTechnicianNotFound
		}
		return nil, err
	}
	if user.Role != models.RoleTechnician || !user.IsActive {
		return nil, apperror.ErrTechnicianNotFound
	}

	tech, err := s.technicians.GetByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			return nil, apperror.ErrTechnicianNotFound
		}
		return nil, err
	}

	// Пароль в json не сериализуется, но подчистим и чувствительные поля.
	user.PasswordHash = ""
	return &PublicProfile{User: user, Technician: tech}, nil
}

// UpdateProfileInput — изменяемые поля профиля техника.
type UpdateProfileInput struct {
	BusinessName *string
	Category     *string
	Bio          *string
	Phone        *string
	Location     *string
}

// UpdateProfile валидирует и сохраняет изменения профиля.
func (s *TechnicianService) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*models.Technician, error) {
	if err := validation.ValidateBio(in.Bio); err != nil {
		return nil, fmt.Errorf("technician service: %w", err)
	}
	if err := validation.ValidateLocation(in.Location); err != nil {
		return nil, fmt.Errorf("technician service: %w", err)
	}
	if in.BusinessName != nil {
		if err := validation.ValidateLength("business_name", *in.BusinessName, 1, 200); err != nil {
			return nil, fmt.Errorf("technician service: %w", err)
		}
	}

	err := s.technicians.UpdateProfile(ctx, userID, repository.UpdateProfileParams{
		BusinessName: in.BusinessName,
		Category:     in.Category,
		Bio:          in.Bio,
		Phone:        in.Phone,
		Location:     in.Location,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTechnicianNotFound) {
			return nil, apperror.ErrTechnicianNotFound
		}
		return nil, err
	}
	return s.technicians.GetByUserID(ctx, userID)
}

// List возвращает публичный каталог техников.
func (s *TechnicianService) List(ctx context.Context, params repository.ListParams) ([]models.TechnicianListItem, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return s.technicians.List(ctx, params)
}

// UploadPhoto проверяет, что файл действительно изображение, сохраняет его и
// привязывает к профилю.
func (s *TechnicianService) UploadPhoto(ctx context.Context, userID uuid.UUID, originalName string, r io.Reader) (*models.MediaFile, error) {
	// Читаем сигнатуру файла, не теряя уже прочитанные байты.
	head := make([]byte, 261)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("technician service: чтение файла: %w", err)
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || !filetype.IsImage(head) {
		return nil, fmt.Errorf("technician service: файл не является изображением")
	}

	full := io.MultiReader(bytes.NewReader(head), r)
	relativePath, size, err := s.photos.Save(ctx, userID, originalName, full)
	if err != nil {
		return nil, err
	}

	file := &models.MediaFile{
		UserID:   &userID,
		FilePath: relativePath,
		FileType: kind.MIME.Value,
		FileSize: size,
		IsPublic: true,
	}
	if err := s.media.Create(ctx, file); err != nil {
		_ = s.photos.Delete(ctx, relativePath)
		return nil, err
	}

	if err := s.technicians.SetPhoto(ctx, userID, file.ID); err != nil {
		return nil, err
	}
	return file, nil
}

// GetPhoto возвращает метаданные фото и абсолютный путь файла.
func (s *TechnicianService) GetPhoto(ctx context.Context, photoID uuid.UUID) (*models.MediaFile, string, error) {
	file, err := s.media.GetByID(ctx, photoID)
	if err != nil {
		if errors.Is(err, repository.ErrMediaNotFound) {
			return nil, "", apperror.ErrNotFound
		}
		return nil, "", err
	}
	return file, s.photos.AbsolutePath(file.FilePath), nil
}
