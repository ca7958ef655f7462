package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"secure_chat_service/internal/keys/domain"
	errprocess "secure_chat_service/pkg/err"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreKeyRepo definition prekey bundle repo
type PreKeyRepo interface {
	AutoMigrate() error
	Upsert(ctx context.Context, bundle *domain.PreKeyBundle) error
	FindByUserDevice(ctx context.Context, userID, deviceID string) (*domain.PreKeyBundle, error)
	Consume(ctx context.Context, userID string) (*domain.PreKeyBundle, string, error)
	SaveBackup(ctx context.Context, bundle *domain.PreKeyBundle) error
}

type preKeyRepo struct {
	db *gorm.DB
}

// NewPreKeyRepo create PreKeyRepo
func NewPreKeyRepo(db *gorm.DB) PreKeyRepo {
	return &preKeyRepo{db: db}
}

// AutoMigrate migrate prekey bundle table
func (r *preKeyRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.PreKeyBundle{})
}

// Upsert 同一 (user, device) 重新上傳會覆蓋金鑰與 one-time key 清單
func (r *preKeyRepo) Upsert(ctx context.Context, bundle *domain.PreKeyBundle) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"identity_key", "signed_pre_key", "one_time_pre_keys", "updated_at",
		}),
	}).Create(bundle).Error
	if err != nil {
		return errprocess.Set("upsert prekey bundle failed: " + err.Error())
	}
	return nil
}

// FindByUserDevice find bundle by user and device
func (r *preKeyRepo) FindByUserDevice(ctx context.Context, userID, deviceID string) (*domain.PreKeyBundle, error) {
	var bundle domain.PreKeyBundle
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		First(&bundle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errprocess.New(errprocess.KindNotFound, "prekey bundle not found")
		}
		return nil, errprocess.Set("find prekey bundle failed: " + err.Error())
	}
	return &bundle, nil
}

// Consume 在單一 transaction 內鎖列取一把 one-time key，
// 同一把 key 不可能發給兩個並發的呼叫者
func (r *preKeyRepo) Consume(ctx context.Context, userID string) (*domain.PreKeyBundle, string, error) {
	var chosen *domain.PreKeyBundle
	var taken string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []domain.PreKeyBundle
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return errprocess.New(errprocess.KindNotFound, "prekey bundle not found")
		}

		// 取最新且還有 one-time key 的列，全部耗盡就回最新列
		chosen = &rows[0]
		for i := range rows {
			if len(rows[i].OneTimePreKeys) > 0 {
				chosen = &rows[i]
				break
			}
		}

		if key, ok := chosen.TakeOneTimeKey(); ok {
			taken = key
			if err := tx.Model(&domain.PreKeyBundle{}).
				Where("id = ?", chosen.ID).
				Updates(map[string]interface{}{
					"one_time_pre_keys": chosen.OneTimePreKeys,
					"updated_at":        time.Now(),
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errprocess.IsKind(err, errprocess.KindNotFound) {
			return nil, "", err
		}
		if isLockError(err) {
			return nil, "", errprocess.New(errprocess.KindTransient, "prekey bundle lock conflict, retry")
		}
		return nil, "", errprocess.Set("consume prekey bundle failed: " + err.Error())
	}
	return chosen, taken, nil
}

// SaveBackup 備份 blob 與時間戳在同一個 UPDATE 內落盤
func (r *preKeyRepo) SaveBackup(ctx context.Context, bundle *domain.PreKeyBundle) error {
	err := r.db.WithContext(ctx).Model(&domain.PreKeyBundle{}).
		Where("id = ?", bundle.ID).
		Updates(map[string]interface{}{
			"backup_ciphertext": bundle.BackupCiphertext,
			"backup_iv":         bundle.BackupIV,
			"backup_salt":       bundle.BackupSalt,
			"last_backup_at":    bundle.LastBackupAt,
			"updated_at":        time.Now(),
		}).Error
	if err != nil {
		return errprocess.Set("save key backup failed: " + err.Error())
	}
	return nil
}

func isLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") || strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "could not obtain lock")
}
