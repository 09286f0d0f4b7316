package services

import (
	"context"
	"fmt"

	"github.com/waffice/backend/internal/storage"
	"gorm.io/gorm"
)

type UploadService struct {
	db        *gorm.DB
	presigner storage.Presigner
}

func NewUploadService(db *gorm.DB, presigner storage.Presigner) *UploadService {
	return &UploadService{db: db, presigner: presigner}
}

type PresignParams struct {
	ActorID     uint
	Filename    string
	ContentType string
}

// Presign issues an upload URL scoped to the caller's own folder.
func (s *UploadService) Presign(ctx context.Context, p PresignParams) (*storage.PresignedUpload, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		return caller.Authorize(OpUpload)
	})
	if err != nil {
		return nil, err
	}
	return s.presigner.PresignUpload(ctx, fmt.Sprintf("users/%d", p.ActorID), p.Filename, p.ContentType)
}
