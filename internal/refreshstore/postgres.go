package refreshstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// refreshRecordModel is the GORM row backing a Record. FamilyID is
// indexed (not unique) to support RevokeFamily's bulk update.
type refreshRecordModel struct {
	JTI         string `gorm:"primaryKey;type:varchar(64)"`
	Username    string `gorm:"index;type:varchar(255);not null"`
	FamilyID    string `gorm:"index:idx_family_id;type:varchar(64);not null"`
	PreviousJti string `gorm:"type:varchar(64)"`
	Revoked     bool   `gorm:"index;not null;default:false"`
	IssuedAt    time.Time
	ExpiresAt   time.Time `gorm:"index"`
}

func (refreshRecordModel) TableName() string { return "refresh_token_records" }

// consumeMarkerModel backs ConsumeOnce via a unique-constraint insert,
// in the same OnConflict-DoNothing idiom as the Redis SETNX marker.
type consumeMarkerModel struct {
	JTI       string `gorm:"primaryKey;type:varchar(64)"`
	ExpiresAt time.Time
}

func (consumeMarkerModel) TableName() string { return "refresh_consume_markers" }

// PostgresStore is the GORM-backed C4 implementation for deployments
// that already run Postgres as the system of record.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps db, assumed already migrated via AutoMigrate
// for refreshRecordModel and consumeMarkerModel.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AutoMigrate creates/updates the backing tables. Call once at startup.
func (s *PostgresStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&refreshRecordModel{}, &consumeMarkerModel{})
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	model := refreshRecordModel{
		JTI:         rec.JTI,
		Username:    rec.Username,
		FamilyID:    rec.FamilyID,
		PreviousJti: rec.PreviousJti,
		Revoked:     rec.Revoked,
		IssuedAt:    rec.IssuedAt,
		ExpiresAt:   rec.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("refreshstore(postgres): save: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByJti(ctx context.Context, jti string) (Record, error) {
	var model refreshRecordModel
	err := s.db.WithContext(ctx).First(&model, "jti = ?", jti).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("refreshstore(postgres): find: %w", err)
	}
	return Record{
		JTI:         model.JTI,
		Username:    model.Username,
		FamilyID:    model.FamilyID,
		PreviousJti: model.PreviousJti,
		Revoked:     model.Revoked,
		IssuedAt:    model.IssuedAt,
		ExpiresAt:   model.ExpiresAt,
	}, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, jti string) error {
	err := s.db.WithContext(ctx).Model(&refreshRecordModel{}).
		Where("jti = ?", jti).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("refreshstore(postgres): revoke: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeFamily(ctx context.Context, familyID string) error {
	err := s.db.WithContext(ctx).Model(&refreshRecordModel{}).
		Where("family_id = ?", familyID).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("refreshstore(postgres): revoke family: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAllForUser(ctx context.Context, username string) error {
	err := s.db.WithContext(ctx).Where("username = ?", username).Delete(&refreshRecordModel{}).Error
	if err != nil {
		return fmt.Errorf("refreshstore(postgres): delete all for user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAllForUser(ctx context.Context, username string) ([]string, error) {
	var jtis []string
	err := s.db.WithContext(ctx).Model(&refreshRecordModel{}).
		Where("username = ?", username).
		Pluck("jti", &jtis).Error
	if err != nil {
		return nil, fmt.Errorf("refreshstore(postgres): find all for user: %w", err)
	}
	return jtis, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&refreshRecordModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("refreshstore(postgres): delete expired: %w", result.Error)
	}
	s.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&consumeMarkerModel{})
	return int(result.RowsAffected), nil
}

// ConsumeOnce relies on the primary-key uniqueness of consumeMarkerModel:
// only the first insert for a given jti succeeds, mirroring the
// Redis SETNX marker's first-consumer-wins semantics.
func (s *PostgresStore) ConsumeOnce(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	model := consumeMarkerModel{JTI: jti, ExpiresAt: time.Now().Add(ttl)}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "jti"}},
		DoNothing: true,
	}).Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("refreshstore(postgres): consume once: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
