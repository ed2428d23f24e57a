package mocks

import (
	"context"

	"docintake/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockFieldRepository struct {
	mock.Mock
}

func (m *MockFieldRepository) CreateBatch(ctx context.Context, fields []model.DocumentField) error {
	args := m.Called(ctx, fields)
	return args.Error(0)
}

func (m *MockFieldRepository) ListByDocument(ctx context.Context, documentID string) ([]model.DocumentField, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentField), args.Error(1)
}

func (m *MockFieldRepository) FindByID(ctx context.Context, id string) (*model.DocumentField, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentField), args.Error(1)
}

func (m *MockFieldRepository) Update(ctx context.Context, f *model.DocumentField) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFieldRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).(int64), args.Error(1)
}
