package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// AccessRequestModel is the persistence shape of an access request
type AccessRequestModel struct {
	RequestID    string `gorm:"primaryKey;size:64"`
	Module       string `gorm:"size:64;not null;index:idx_access_requests_user_module"`
	RequestType  string `gorm:"size:64;not null"`
	Remarks      string `gorm:"type:text"`
	Username     string `gorm:"size:128;not null;index:idx_access_requests_user_module"`
	UserRole     string `gorm:"size:32"`
	Status       string `gorm:"size:16;not null;index"`
	ExpiresAt    *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	ReviewedAt   *time.Time
	ReviewedBy   string `gorm:"size:128"`
	RejectReason string `gorm:"type:text"`
}

func (AccessRequestModel) TableName() string {
	return "access_requests"
}

type AccessRequestRepository struct {
	db *gorm.DB
}

// Open connects to the sqlite database at path and migrates the schema.
// ":memory:" keeps everything on a single connection.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&AccessRequestModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate access requests: %w", err)
	}
	return db, nil
}

func NewAccessRequestRepository(db *gorm.DB) outbound.AccessRequestRepository {
	return &AccessRequestRepository{db: db}
}

func (r *AccessRequestRepository) Store(ctx context.Context, request *model.AccessRequest) error {
	row := toModel(request)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to store access request: %w", err)
	}
	return nil
}

func (r *AccessRequestRepository) GetByID(ctx context.Context, requestID string) (*model.AccessRequest, error) {
	var row AccessRequestModel
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrAccessRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access request: %w", err)
	}
	return toEntity(&row), nil
}

func (r *AccessRequestRepository) List(ctx context.Context, status *model.AccessRequestStatus) ([]*model.AccessRequest, error) {
	query := r.db.WithContext(ctx).Model(&AccessRequestModel{})
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}

	var rows []*AccessRequestModel
	if err := query.Order("created_at ASC").Order("request_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}

	result := make([]*model.AccessRequest, 0, len(rows))
	for _, row := range rows {
		result = append(result, toEntity(row))
	}
	return result, nil
}

func (r *AccessRequestRepository) Delete(ctx context.Context, requestID string) error {
	res := r.db.WithContext(ctx).Where("request_id = ?", requestID).Delete(&AccessRequestModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete access request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrAccessRequestNotFound
	}
	return nil
}

func toModel(request *model.AccessRequest) *AccessRequestModel {
	return &AccessRequestModel{
		RequestID:    request.RequestID,
		Module:       string(request.Module),
		RequestType:  string(request.RequestType),
		Remarks:      request.Remarks,
		Username:     request.Username,
		UserRole:     string(request.UserRole),
		Status:       string(request.Status),
		ExpiresAt:    utcPtr(request.ExpiresAt),
		CreatedAt:    request.CreatedAt.UTC(),
		ReviewedAt:   utcPtr(request.ReviewedAt),
		ReviewedBy:   request.ReviewedBy,
		RejectReason: request.RejectReason,
	}
}

func toEntity(row *AccessRequestModel) *model.AccessRequest {
	return &model.AccessRequest{
		RequestID:    row.RequestID,
		Module:       model.Module(row.Module),
		RequestType:  model.RequestType(row.RequestType),
		Remarks:      row.Remarks,
		Username:     row.Username,
		UserRole:     model.UserRole(row.UserRole),
		Status:       model.AccessRequestStatus(row.Status),
		ExpiresAt:    utcPtr(row.ExpiresAt),
		CreatedAt:    row.CreatedAt.UTC(),
		ReviewedAt:   utcPtr(row.ReviewedAt),
		ReviewedBy:   row.ReviewedBy,
		RejectReason: row.RejectReason,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
