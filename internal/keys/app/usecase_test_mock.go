package app

import (
	"context"
	"sync"

	"secure_chat_service/internal/keys/domain"

	"github.com/stretchr/testify/mock"
)

// MockPreKeyRepo Mock PreKeyRepo
type MockPreKeyRepo struct {
	mock.Mock
}

// AutoMigrate moke migrate
func (m *MockPreKeyRepo) AutoMigrate() error {
	args := m.Called()
	return args.Error(0)
}

// Upsert moke upsert bundle
func (m *MockPreKeyRepo) Upsert(ctx context.Context, bundle *domain.PreKeyBundle) error {
	args := m.Called(ctx, bundle)
	return args.Error(0)
}

// FindByUserDevice moke find bundle
func (m *MockPreKeyRepo) FindByUserDevice(ctx context.Context, userID, deviceID string) (*domain.PreKeyBundle, error) {
	args := m.Called(ctx, userID, deviceID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.PreKeyBundle), args.Error(1)
	}
	return nil, args.Error(1)
}

// Consume moke consume bundle
func (m *MockPreKeyRepo) Consume(ctx context.Context, userID string) (*domain.PreKeyBundle, string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.PreKeyBundle), args.String(1), args.Error(2)
	}
	return nil, args.String(1), args.Error(2)
}

// SaveBackup moke save backup
func (m *MockPreKeyRepo) SaveBackup(ctx context.Context, bundle *domain.PreKeyBundle) error {
	args := m.Called(ctx, bundle)
	return args.Error(0)
}

// fakeAuditRepo 記錄審計，不會失敗
type fakeAuditRepo struct {
	mu      sync.Mutex
	records []domain.KeyAuditRecord
}

func (f *fakeAuditRepo) Record(ctx context.Context, rec domain.KeyAuditRecord) error {
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
	return nil
}

func (f *fakeAuditRepo) all() []domain.KeyAuditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.KeyAuditRecord{}, f.records...)
}
