package app

import (
	"context"
	"fmt"
	"time"

	"secure_chat_service/internal/keys/domain"
	"secure_chat_service/internal/keys/repository"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"
)

// 審計的操作名稱
const (
	OpPublishBundle = "publish_bundle"
	OpConsumeBundle = "consume_bundle"
	OpStoreBackup   = "store_backup"
)

// timeNow 包一層讓測試可以換時間
var timeNow = time.Now

// PreKeyUseCase definition prekey usecase function
type PreKeyUseCase interface {
	Publish(ctx context.Context, req domain.PublishBundleReq, clientAddr string) error
	ConsumeBundle(ctx context.Context, targetUserID, clientAddr string) (*domain.ConsumedBundle, error)
	StoreEncryptedBackup(ctx context.Context, userID string, req domain.EncryptedBackupReq, clientAddr string) error
}

type preKeyUseCase struct {
	repo  repository.PreKeyRepo
	audit repository.AuditRepo
}

// NewPreKeyUseCase create prekey usecase
func NewPreKeyUseCase(repo repository.PreKeyRepo, audit repository.AuditRepo) PreKeyUseCase {
	return &preKeyUseCase{repo: repo, audit: audit}
}

// record 審計失敗只記 log，不影響主流程
func (uc *preKeyUseCase) record(ctx context.Context, op, userID, deviceID, clientAddr, outcome string) {
	if uc.audit == nil {
		return
	}
	rec := domain.KeyAuditRecord{
		Operation:     op,
		UserID:        userID,
		DeviceID:      deviceID,
		ClientAddress: clientAddr,
		Outcome:       outcome,
		Timestamp:     timeNow(),
	}
	if err := uc.audit.Record(ctx, rec); err != nil {
		logger.Log.Errorf("record key audit failed:", err)
	}
}

// Publish 上傳或覆蓋 (user, device) 的金鑰包
func (uc *preKeyUseCase) Publish(ctx context.Context, req domain.PublishBundleReq, clientAddr string) error {
	if req.UserID == "" || req.DeviceID == "" {
		uc.record(ctx, OpPublishBundle, req.UserID, req.DeviceID, clientAddr, "rejected")
		return errprocess.New(errprocess.KindValidation, "user id and device id are required")
	}
	if req.IdentityKey == "" || req.SignedPreKey == "" {
		uc.record(ctx, OpPublishBundle, req.UserID, req.DeviceID, clientAddr, "rejected")
		return errprocess.New(errprocess.KindValidation, "identity key and signed pre key are required")
	}

	bundle := &domain.PreKeyBundle{
		UserID:         req.UserID,
		DeviceID:       req.DeviceID,
		IdentityKey:    req.IdentityKey,
		SignedPreKey:   req.SignedPreKey,
		OneTimePreKeys: domain.OneTimeKeyList(req.OneTimePreKeys),
	}
	if err := uc.repo.Upsert(ctx, bundle); err != nil {
		uc.record(ctx, OpPublishBundle, req.UserID, req.DeviceID, clientAddr, "error")
		return err
	}

	uc.record(ctx, OpPublishBundle, req.UserID, req.DeviceID, clientAddr, "ok")
	return nil
}

// ConsumeBundle 取目標 user 的金鑰包並消耗一把 one-time key,
// one-time key 耗盡時回傳的 bundle 不帶 one-time key
func (uc *preKeyUseCase) ConsumeBundle(ctx context.Context, targetUserID, clientAddr string) (*domain.ConsumedBundle, error) {
	if targetUserID == "" {
		uc.record(ctx, OpConsumeBundle, targetUserID, "", clientAddr, "rejected")
		return nil, errprocess.New(errprocess.KindValidation, "user id is required")
	}

	bundle, oneTimeKey, err := uc.repo.Consume(ctx, targetUserID)
	if err != nil {
		outcome := "error"
		if errprocess.IsKind(err, errprocess.KindNotFound) {
			outcome = "not_found"
		}
		uc.record(ctx, OpConsumeBundle, targetUserID, "", clientAddr, outcome)
		return nil, err
	}

	uc.record(ctx, OpConsumeBundle, targetUserID, bundle.DeviceID, clientAddr, "ok")
	return &domain.ConsumedBundle{
		UserID:        bundle.UserID,
		DeviceID:      bundle.DeviceID,
		IdentityKey:   bundle.IdentityKey,
		SignedPreKey:  bundle.SignedPreKey,
		OneTimePreKey: oneTimeKey,
	}, nil
}

// StoreEncryptedBackup 存放加密金鑰備份，同一 device 24 小時限一次
func (uc *preKeyUseCase) StoreEncryptedBackup(ctx context.Context, userID string, req domain.EncryptedBackupReq, clientAddr string) error {
	if req.DeviceID == "" {
		uc.record(ctx, OpStoreBackup, userID, req.DeviceID, clientAddr, "rejected")
		return errprocess.New(errprocess.KindValidation, "device id is required")
	}
	if req.Ciphertext == "" || req.IV == "" || req.Salt == "" {
		uc.record(ctx, OpStoreBackup, userID, req.DeviceID, clientAddr, "rejected")
		return errprocess.New(errprocess.KindValidation, "ciphertext, iv and salt are required")
	}

	bundle, err := uc.repo.FindByUserDevice(ctx, userID, req.DeviceID)
	if err != nil {
		// 找不到代表 device id 與註冊的 bundle 不符，屬於 policy 拒絕
		if errprocess.IsKind(err, errprocess.KindNotFound) {
			uc.record(ctx, OpStoreBackup, userID, req.DeviceID, clientAddr, "rejected")
			return errprocess.New(errprocess.KindPolicy, "device id does not match a registered bundle")
		}
		uc.record(ctx, OpStoreBackup, userID, req.DeviceID, clientAddr, "error")
		return err
	}

	if !bundle.LastBackupAt.IsZero() {
		since := timeNow().Sub(bundle.LastBackupAt)
		if since < domain.BackupInterval {
			remaining := domain.BackupInterval - since
			hours := int(remaining.Round(time.Hour).Hours())
			uc.record(ctx, OpStoreBackup, userID, req.DeviceID, clientAddr, "rejected")
			return errprocess.New(errprocess.KindPolicy,
				fmt.Sprintf("backup allowed once per 24 hours, retry after %d hours", hours))
		}
	}

	bundle.BackupCiphertext = req.Ciphertext
	bundle.BackupIV = req.IV
	bundle.BackupSalt = req.Salt
	bundle.LastBackupAt = timeNow()
	if err := uc.repo.SaveBackup(ctx, bundle); err != nil {
		uc.record(ctx, OpStoreBackup, userID, req.DeviceID, clientAddr, "error")
		return err
	}

	uc.record(ctx, OpStoreBackup, userID, req.DeviceID, clientAddr, "ok")
	return nil
}
