package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/node-launcher/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockStorageBackend implements interfaces.StorageBackend for testing
type MockStorageBackend struct {
	mock.Mock
	name string
}

func (m *MockStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	args := m.Called(ctx, data)
	return args.Get(0).(interfaces.ContentID), args.Error(1)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) Name() string {
	return m.name
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock:" + m.name
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiStorageBackend_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{name: "all backends available", backends: []bool{true, true, true}, expected: true},
		{name: "some backends available", backends: []bool{false, true, false}, expected: true},
		{name: "no backends available", backends: []bool{false, false, false}, expected: false},
		{name: "no backends", backends: []bool{}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.StorageBackend
			for i, available := range tt.backends {
				mockStorage := &MockStorageBackend{name: fmt.Sprintf("mock-%d", i)}
				mockStorage.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, mockStorage)
			}

			multi := NewMultiStorageBackend(backends, discardLogger())
			assert.Equal(t, tt.expected, multi.Available(context.Background()))

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Fetch(t *testing.T) {
	testID := interfaces.ContentID([32]byte{1, 2, 3, 4})
	testData := []byte("test data")
	testErr := errors.New("test error")

	tests := []struct {
		name         string
		setupMocks   func() []interfaces.StorageBackend
		expectedData []byte
		expectedErr  error
		anyErr       bool
	}{
		{
			name: "first backend successful",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Fetch", mock.Anything, testID).Return(testData, nil)

				// not consulted once the first one succeeds
				mock2 := &MockStorageBackend{name: "mock-B"}

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "first backend fails, second succeeds",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Fetch", mock.Anything, testID).Return(nil, testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Fetch", mock.Anything, testID).Return(testData, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Fetch", mock.Anything, testID).Return(nil, testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Fetch", mock.Anything, testID).Return(nil, interfaces.ErrContentNotFound)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			anyErr: true,
		},
		{
			name: "not found everywhere",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Fetch", mock.Anything, testID).Return(nil, interfaces.ErrContentNotFound)

				return []interfaces.StorageBackend{mock1}
			},
			expectedErr: interfaces.ErrContentNotFound,
		},
		{
			name: "nothing available",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				return []interfaces.StorageBackend{mock1}
			},
			expectedErr: interfaces.ErrBackendUnavailable,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Fetch", mock.Anything, testID).Return(testData, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedData: testData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStorageBackend(backends, discardLogger())

			data, err := multi.Fetch(context.Background(), testID)

			switch {
			case tt.expectedErr != nil:
				assert.ErrorIs(t, err, tt.expectedErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedData, data)

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Store(t *testing.T) {
	testID := interfaces.ContentID([32]byte{1, 2, 3, 4})
	testData := []byte("test data")
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.StorageBackend
		expectedError bool
	}{
		{
			name: "primary and mirror successful",
			setupMocks: func() []interfaces.StorageBackend {
				primary := &MockStorageBackend{name: "primary"}
				primary.On("Store", mock.Anything, testData).Return(testID, nil)

				mirror := &MockStorageBackend{name: "mirror"}
				mirror.On("Available", mock.Anything).Return(true)
				mirror.On("Store", mock.Anything, testData).Return(testID, nil)

				return []interfaces.StorageBackend{primary, mirror}
			},
		},
		{
			name: "mirror failure is tolerated",
			setupMocks: func() []interfaces.StorageBackend {
				primary := &MockStorageBackend{name: "primary"}
				primary.On("Store", mock.Anything, testData).Return(testID, nil)

				mirror := &MockStorageBackend{name: "mirror"}
				mirror.On("Available", mock.Anything).Return(true)
				mirror.On("Store", mock.Anything, testData).Return(interfaces.ContentID{}, testErr)

				return []interfaces.StorageBackend{primary, mirror}
			},
		},
		{
			name: "primary failure fails the store",
			setupMocks: func() []interfaces.StorageBackend {
				primary := &MockStorageBackend{name: "primary"}
				primary.On("Store", mock.Anything, testData).Return(testID, testErr)

				// mirrors are not written when the primary fails
				mirror := &MockStorageBackend{name: "mirror"}

				return []interfaces.StorageBackend{primary, mirror}
			},
			expectedError: true,
		},
		{
			name: "unavailable mirrors are skipped",
			setupMocks: func() []interfaces.StorageBackend {
				primary := &MockStorageBackend{name: "primary"}
				primary.On("Store", mock.Anything, testData).Return(testID, nil)

				mirror := &MockStorageBackend{name: "mirror"}
				mirror.On("Available", mock.Anything).Return(false)

				return []interfaces.StorageBackend{primary, mirror}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStorageBackend(backends, discardLogger())

			id, err := multi.Store(context.Background(), testData)

			if tt.expectedError {
				assert.ErrorIs(t, err, testErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, testID, id)

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_StoreWithoutBackends(t *testing.T) {
	multi := NewMultiStorageBackend(nil, discardLogger())
	_, err := multi.Store(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}
