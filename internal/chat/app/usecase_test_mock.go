package app

import (
	"context"
	"sync"

	"secure_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert moke insert message
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindByID moke find message by id
func (m *MockMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateStatus moke update message status
func (m *MockMessageRepository) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// FindConversation moke find conversation
func (m *MockMessageRepository) FindConversation(ctx context.Context, userID, peerID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, userID, peerID, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockGroupPublisher Mock GroupPublisher
type MockGroupPublisher struct {
	mock.Mock
}

// Publish moke publish to channel
func (m *MockGroupPublisher) Publish(channel string, message interface{}) error {
	args := m.Called(channel, message)
	return args.Error(0)
}

// MockNotificationPublisher Mock NotificationPublisher
type MockNotificationPublisher struct {
	mock.Mock
}

// Publish moke publish notification event
func (m *MockNotificationPublisher) Publish(ctx context.Context, ev domain.NotificationEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockMemberDirectory Mock MemberDirectory
type MockMemberDirectory struct {
	mock.Mock
}

// FindProfile moke find member profile
func (m *MockMemberDirectory) FindProfile(ctx context.Context, memberID string) (*domain.MemberProfile, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.MemberProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakePresence 固定在線名單
type fakePresence struct {
	online map[string]bool
}

func (f *fakePresence) IsOnline(userID string) bool {
	return f.online[userID]
}

// fakeTyping 記錄 ForceIdle 呼叫
type fakeTyping struct {
	mu    sync.Mutex
	idled []string
}

func (f *fakeTyping) ForceIdle(userID string) {
	f.mu.Lock()
	f.idled = append(f.idled, userID)
	f.mu.Unlock()
}

func (f *fakeTyping) idledUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.idled...)
}

// fakeNotifier 記錄 OfflineNotice，done 讓測試等非同步呼叫
type fakeNotifier struct {
	mu      sync.Mutex
	notices []domain.OfflineNotice
	done    chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 8)}
}

func (f *fakeNotifier) NotifyIfOffline(ctx context.Context, n domain.OfflineNotice) {
	f.mu.Lock()
	f.notices = append(f.notices, n)
	f.mu.Unlock()
	f.done <- struct{}{}
}

func (f *fakeNotifier) all() []domain.OfflineNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OfflineNotice{}, f.notices...)
}
