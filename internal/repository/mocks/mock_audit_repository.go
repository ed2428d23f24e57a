package mocks

import (
	"context"
	"time"

	"docintake/internal/model"
	"docintake/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]model.AuditLog, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditLog), args.Error(1)
}

func (m *MockAuditRepository) ListByUser(ctx context.Context, userID string, from, to time.Time, pq repository.PageQuery) (*repository.PageResult[model.AuditLog], error) {
	args := m.Called(ctx, userID, from, to, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.AuditLog]), args.Error(1)
}

func (m *MockAuditRepository) ListAnomalies(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.AuditLog], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.AuditLog]), args.Error(1)
}

func (m *MockAuditRepository) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockAuditRepository) CountByUserActionSince(ctx context.Context, userID, action string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, action, since)
	return args.Int(0), args.Error(1)
}

func (m *MockAuditRepository) CountFailedByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}
