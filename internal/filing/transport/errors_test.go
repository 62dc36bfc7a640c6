package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportError_Categories(t *testing.T) {
	tests := []struct {
		category  Category
		retryable bool
		notFound  bool
		exists    bool
	}{
		{CategoryConnection, true, false, false},
		{CategoryTimeout, true, false, false},
		{CategoryAuthentication, false, false, false},
		{CategoryNotFound, false, true, false},
		{CategoryAlreadyExists, false, false, true},
		{CategoryUnavailable, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewError(tt.category, OpDownload, "acknowledgements/x", nil))
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))
			assert.Equal(t, tt.exists, errors.Is(err, ErrAlreadyExists))
			assert.Equal(t, tt.category, GetCategory(err))
		})
	}
}

func TestGetCategory_ForeignError(t *testing.T) {
	assert.Equal(t, CategoryInternal, GetCategory(errors.New("x")))
	assert.False(t, IsRetryable(errors.New("x")))
}

func TestClassifyFileError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"missing", &os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, CategoryNotFound},
		{"exists", os.ErrExist, CategoryAlreadyExists},
		{"permission", os.ErrPermission, CategoryAuthentication},
		{"dropped session", io.ErrUnexpectedEOF, CategoryConnection},
		{"other", errors.New("quota exceeded"), CategoryInternal},
		{"already classified", NewError(CategoryTimeout, OpList, "x", nil), CategoryTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFileError(OpUpload, "submissions/x", tt.err).Category)
		})
	}
}

func TestClassifyConnError(t *testing.T) {
	assert.Equal(t, CategoryAuthentication,
		classifyConnError(OpUpload, "x", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]")).Category)
	assert.Equal(t, CategoryAuthentication,
		classifyConnError(OpUpload, "x", errors.New("ssh: handshake failed: ssh: host key mismatch")).Category)
	assert.Equal(t, CategoryConnection,
		classifyConnError(OpUpload, "x", errors.New("dial tcp 10.0.0.1:22: connect: connection refused")).Category)
}
