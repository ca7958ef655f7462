package app

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"secure_chat_service/internal/keys/domain"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

// 測試上傳金鑰包
func TestPreKeyUseCase_Publish(t *testing.T) {
	ctx := context.Background()

	mockRepo := new(MockPreKeyRepo)
	audit := &fakeAuditRepo{}
	mockRepo.On("Upsert", ctx, mock.MatchedBy(func(b *domain.PreKeyBundle) bool {
		return b.UserID == "user-1" && b.DeviceID == "device-1" && len(b.OneTimePreKeys) == 3
	})).Return(nil)

	uc := NewPreKeyUseCase(mockRepo, audit)
	err := uc.Publish(ctx, domain.PublishBundleReq{
		UserID:         "user-1",
		DeviceID:       "device-1",
		IdentityKey:    "ik",
		SignedPreKey:   "spk",
		OneTimePreKeys: []string{"otk-1", "otk-2", "otk-3"},
	}, "10.0.0.1")

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)

	records := audit.all()
	assert.Len(t, records, 1)
	assert.Equal(t, OpPublishBundle, records[0].Operation)
	assert.Equal(t, "ok", records[0].Outcome)
	assert.Equal(t, "10.0.0.1", records[0].ClientAddress)
}

// 測試缺欄位時拒收且有審計
func TestPreKeyUseCase_PublishValidation(t *testing.T) {
	ctx := context.Background()
	audit := &fakeAuditRepo{}

	uc := NewPreKeyUseCase(new(MockPreKeyRepo), audit)

	err := uc.Publish(ctx, domain.PublishBundleReq{UserID: "user-1"}, "10.0.0.1")
	assert.True(t, errprocess.IsKind(err, errprocess.KindValidation))

	err = uc.Publish(ctx, domain.PublishBundleReq{UserID: "user-1", DeviceID: "d1"}, "10.0.0.1")
	assert.True(t, errprocess.IsKind(err, errprocess.KindValidation))

	records := audit.all()
	assert.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "rejected", rec.Outcome)
	}
}

// 測試取金鑰包消耗一把 one-time key
func TestPreKeyUseCase_ConsumeBundle(t *testing.T) {
	ctx := context.Background()

	mockRepo := new(MockPreKeyRepo)
	audit := &fakeAuditRepo{}
	mockRepo.On("Consume", ctx, "user-1").Return(&domain.PreKeyBundle{
		UserID: "user-1", DeviceID: "device-1", IdentityKey: "ik", SignedPreKey: "spk",
	}, "otk-1", nil)

	uc := NewPreKeyUseCase(mockRepo, audit)
	bundle, err := uc.ConsumeBundle(ctx, "user-1", "10.0.0.2")

	assert.NoError(t, err)
	assert.Equal(t, "otk-1", bundle.OneTimePreKey)
	assert.Equal(t, "ik", bundle.IdentityKey)
	mockRepo.AssertExpectations(t)
}

// 測試 one-time key 耗盡時 bundle 照回但沒有 one-time key
func TestPreKeyUseCase_ConsumeBundleExhausted(t *testing.T) {
	ctx := context.Background()

	mockRepo := new(MockPreKeyRepo)
	mockRepo.On("Consume", ctx, "user-1").Return(&domain.PreKeyBundle{
		UserID: "user-1", DeviceID: "device-1", IdentityKey: "ik", SignedPreKey: "spk",
	}, "", nil)

	uc := NewPreKeyUseCase(mockRepo, &fakeAuditRepo{})
	bundle, err := uc.ConsumeBundle(ctx, "user-1", "10.0.0.2")

	assert.NoError(t, err)
	assert.Empty(t, bundle.OneTimePreKey)
	assert.Equal(t, "spk", bundle.SignedPreKey)
}

// 測試目標 user 沒有金鑰包
func TestPreKeyUseCase_ConsumeBundleNotFound(t *testing.T) {
	ctx := context.Background()

	mockRepo := new(MockPreKeyRepo)
	audit := &fakeAuditRepo{}
	mockRepo.On("Consume", ctx, "ghost").Return(nil, "", errprocess.New(errprocess.KindNotFound, "prekey bundle not found"))

	uc := NewPreKeyUseCase(mockRepo, audit)
	_, err := uc.ConsumeBundle(ctx, "ghost", "10.0.0.2")

	assert.True(t, errprocess.IsKind(err, errprocess.KindNotFound))
	records := audit.all()
	assert.Len(t, records, 1)
	assert.Equal(t, "not_found", records[0].Outcome)
}

// 測試金鑰備份與 24 小時限制
func TestPreKeyUseCase_StoreEncryptedBackup(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return base }
	defer func() { timeNow = time.Now }()

	mockRepo := new(MockPreKeyRepo)
	mockRepo.On("FindByUserDevice", ctx, "user-1", "device-1").Return(&domain.PreKeyBundle{
		ID: 7, UserID: "user-1", DeviceID: "device-1",
	}, nil).Once()
	mockRepo.On("SaveBackup", ctx, mock.MatchedBy(func(b *domain.PreKeyBundle) bool {
		return b.BackupCiphertext == "cipher" && b.LastBackupAt.Equal(base)
	})).Return(nil)

	uc := NewPreKeyUseCase(mockRepo, &fakeAuditRepo{})
	req := domain.EncryptedBackupReq{DeviceID: "device-1", Ciphertext: "cipher", IV: "iv", Salt: "salt"}

	err := uc.StoreEncryptedBackup(ctx, "user-1", req, "10.0.0.3")
	assert.NoError(t, err)

	// 一小時後再備份，應被拒且提示剩餘 23 小時
	timeNow = func() time.Time { return base.Add(time.Hour) }
	mockRepo.On("FindByUserDevice", ctx, "user-1", "device-1").Return(&domain.PreKeyBundle{
		ID: 7, UserID: "user-1", DeviceID: "device-1", LastBackupAt: base,
	}, nil).Once()

	err = uc.StoreEncryptedBackup(ctx, "user-1", req, "10.0.0.3")
	assert.True(t, errprocess.IsKind(err, errprocess.KindPolicy))
	assert.Contains(t, err.Error(), "23 hours")

	// 超過 24 小時後可以再備份
	timeNow = func() time.Time { return base.Add(25 * time.Hour) }
	mockRepo.On("FindByUserDevice", ctx, "user-1", "device-1").Return(&domain.PreKeyBundle{
		ID: 7, UserID: "user-1", DeviceID: "device-1", LastBackupAt: base,
	}, nil).Once()

	err = uc.StoreEncryptedBackup(ctx, "user-1", req, "10.0.0.3")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

// 測試備份 blob 欄位不完整
func TestPreKeyUseCase_StoreEncryptedBackupValidation(t *testing.T) {
	ctx := context.Background()
	uc := NewPreKeyUseCase(new(MockPreKeyRepo), &fakeAuditRepo{})

	cases := []domain.EncryptedBackupReq{
		{Ciphertext: "c", IV: "iv", Salt: "s"},
		{DeviceID: "d1", IV: "iv", Salt: "s"},
		{DeviceID: "d1", Ciphertext: "c", Salt: "s"},
		{DeviceID: "d1", Ciphertext: "c", IV: "iv"},
	}
	for _, req := range cases {
		err := uc.StoreEncryptedBackup(ctx, "user-1", req, "10.0.0.3")
		assert.True(t, errprocess.IsKind(err, errprocess.KindValidation))
	}
}

// 測試 device id 不符註冊 bundle 時以 policy 拒絕備份
func TestPreKeyUseCase_StoreEncryptedBackupDeviceMismatch(t *testing.T) {
	ctx := context.Background()

	mockRepo := new(MockPreKeyRepo)
	audit := &fakeAuditRepo{}
	mockRepo.On("FindByUserDevice", ctx, "user-1", "device-x").
		Return(nil, errprocess.New(errprocess.KindNotFound, "prekey bundle not found"))

	uc := NewPreKeyUseCase(mockRepo, audit)
	req := domain.EncryptedBackupReq{DeviceID: "device-x", Ciphertext: "c", IV: "iv", Salt: "s"}

	err := uc.StoreEncryptedBackup(ctx, "user-1", req, "10.0.0.3")
	assert.True(t, errprocess.IsKind(err, errprocess.KindPolicy))

	records := audit.all()
	assert.Len(t, records, 1)
	assert.Equal(t, "rejected", records[0].Outcome)
}

// 測試審計不含金鑰材料
func TestPreKeyUseCase_AuditHasNoKeyMaterial(t *testing.T) {
	ctx := context.Background()

	mockRepo := new(MockPreKeyRepo)
	audit := &fakeAuditRepo{}
	mockRepo.On("Consume", ctx, "user-1").Return(&domain.PreKeyBundle{
		UserID: "user-1", DeviceID: "device-1", IdentityKey: "super-secret-ik", SignedPreKey: "spk",
	}, "otk-secret", nil)

	uc := NewPreKeyUseCase(mockRepo, audit)
	_, err := uc.ConsumeBundle(ctx, "user-1", "10.0.0.4")
	assert.NoError(t, err)

	records := audit.all()
	assert.Len(t, records, 1)
	assert.Equal(t, "ok", records[0].Outcome)
	assert.Equal(t, "device-1", records[0].DeviceID)
	// 審計欄位只有操作資訊，沒有任何地方放金鑰
	raw, _ := json.Marshal(records[0])
	assert.NotContains(t, string(raw), "otk-secret")
	assert.NotContains(t, string(raw), "super-secret-ik")
}
