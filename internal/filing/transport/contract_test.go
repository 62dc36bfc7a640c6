package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runClientContract exercises the behaviour every Client must share.
// Directories "submissions" and "acknowledgements" must exist and be empty.
func runClientContract(t *testing.T, client Client) {
	t.Helper()
	ctx := context.Background()

	t.Run("upload then download returns the same bytes", func(t *testing.T) {
		data := []byte("<EFilingBatchXML/>")
		require.NoError(t, client.Upload(ctx, "submissions", "contract-a.xml", data))

		got, err := client.Download(ctx, "submissions", "contract-a.xml")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("upload never overwrites", func(t *testing.T) {
		require.NoError(t, client.Upload(ctx, "submissions", "contract-b.xml", []byte("first")))

		err := client.Upload(ctx, "submissions", "contract-b.xml", []byte("second"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAlreadyExists))
		assert.False(t, IsRetryable(err))

		got, err := client.Download(ctx, "submissions", "contract-b.xml")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got)
	})

	t.Run("download of a missing file is ErrNotFound", func(t *testing.T) {
		_, err := client.Download(ctx, "acknowledgements", "missing.xml.MESSAGES.XML")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, CategoryNotFound, GetCategory(err))
	})

	t.Run("list returns file names sorted", func(t *testing.T) {
		names, err := client.List(ctx, "submissions")
		require.NoError(t, err)
		assert.Equal(t, []string{"contract-a.xml", "contract-b.xml"}, names)
	})
}
