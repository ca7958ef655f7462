package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"testing"

	"secure_chat_service/internal/keys/domain"
	"secure_chat_service/internal/keys/repository"
	"secure_chat_service/pkg/database"
	testtool "secure_chat_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, host, port, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image: "postgres:latest",
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("terminate postgres container: %v", err)
		}
	})

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port)
	db, err := database.NewPGConnection(database.Connection{
		ConnectStr:    dsn,
		RetryCount:    10,
		RetryInterval: 2,
	})
	require.NoError(t, err)
	return db
}

// 測試並發 consume 同一把 one-time key 只會發給一個呼叫者
func TestPreKeyRepo_ConcurrentConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("skip container test in short mode")
	}

	db := setupPostgres(t)
	repo := repository.NewPreKeyRepo(db)
	require.NoError(t, repo.AutoMigrate())

	ctx := context.Background()
	uc := NewPreKeyUseCase(repo, &fakeAuditRepo{})

	// 只放一把 one-time key
	require.NoError(t, uc.Publish(ctx, domain.PublishBundleReq{
		UserID:         "user-1",
		DeviceID:       "device-1",
		IdentityKey:    "ik",
		SignedPreKey:   "spk",
		OneTimePreKeys: []string{"otk-only"},
	}, "127.0.0.1"))

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bundle, err := uc.ConsumeBundle(ctx, "user-1", "127.0.0.1")
			if err == nil {
				results[n] = bundle.OneTimePreKey
			}
		}(i)
	}
	wg.Wait()

	// 恰好一個呼叫者拿到 one-time key，其他拿到沒有 key 的 bundle
	got := 0
	for _, key := range results {
		if key == "otk-only" {
			got++
		} else {
			assert.Empty(t, key)
		}
	}
	assert.Equal(t, 1, got)
}

// 測試重新上傳覆蓋同一 (user, device) 而不是長出新列
func TestPreKeyRepo_UpsertOverwrites(t *testing.T) {
	if testing.Short() {
		t.Skip("skip container test in short mode")
	}

	db := setupPostgres(t)
	repo := repository.NewPreKeyRepo(db)
	require.NoError(t, repo.AutoMigrate())

	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.PreKeyBundle{
		UserID: "user-1", DeviceID: "device-1",
		IdentityKey: "ik-old", SignedPreKey: "spk-old",
		OneTimePreKeys: domain.OneTimeKeyList{"a", "b"},
	}))
	require.NoError(t, repo.Upsert(ctx, &domain.PreKeyBundle{
		UserID: "user-1", DeviceID: "device-1",
		IdentityKey: "ik-new", SignedPreKey: "spk-new",
		OneTimePreKeys: domain.OneTimeKeyList{"c"},
	}))

	bundle, err := repo.FindByUserDevice(ctx, "user-1", "device-1")
	require.NoError(t, err)
	assert.Equal(t, "ik-new", bundle.IdentityKey)
	assert.Equal(t, domain.OneTimeKeyList{"c"}, bundle.OneTimePreKeys)

	var count int64
	require.NoError(t, db.Model(&domain.PreKeyBundle{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
