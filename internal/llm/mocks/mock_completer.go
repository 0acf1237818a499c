package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, question, docContext string) (string, error) {
	args := m.Called(ctx, question, docContext)
	return args.String(0), args.Error(1)
}
