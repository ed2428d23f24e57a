package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"docintake/internal/extract"
	"docintake/internal/model"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Analyze(ctx context.Context, r io.Reader, mode model.ProcessingType) (*extract.Result, error) {
	args := m.Called(ctx, r, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extract.Result), args.Error(1)
}
