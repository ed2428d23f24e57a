package mocks

import (
	"context"
	"io"

	"docintake/internal/model"
	"docintake/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, r io.Reader, req service.UploadRequest) (*model.Document, error) {
	args := m.Called(ctx, r, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Process(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) RetryProcessing(ctx context.Context, id string, actor service.Actor) (*model.Document, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, id string, actor service.Actor) (io.ReadCloser, *model.Document, error) {
	args := m.Called(ctx, id, actor)
	var rc io.ReadCloser
	if args.Get(0) != nil {
		rc = args.Get(0).(io.ReadCloser)
	}
	var doc *model.Document
	if args.Get(1) != nil {
		doc = args.Get(1).(*model.Document)
	}
	return rc, doc, args.Error(2)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string, actor service.Actor) error {
	args := m.Called(ctx, id, actor)
	return args.Error(0)
}

func (m *MockDocumentService) Cancel(ctx context.Context, id string, actor service.Actor) (*model.Document, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string, actor service.Actor) (*model.Document, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, ownerID string, status *model.Status, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, ownerID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) Fields(ctx context.Context, id string, actor service.Actor) ([]model.DocumentField, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentField), args.Error(1)
}

func (m *MockDocumentService) UpdateField(ctx context.Context, docID, fieldID string, actor service.Actor, upd service.FieldUpdate) (*model.DocumentField, error) {
	args := m.Called(ctx, docID, fieldID, actor, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentField), args.Error(1)
}
