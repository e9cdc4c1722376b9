package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
)

func TestAcquire_WritesPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(b))

	require.NoError(t, l.Release())
	assert.NoFileExists(t, path)
	require.NoError(t, l.Release(), "second release")
}

func TestAcquire_HeldByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")
	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	_, err = Acquire(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyRunning)
	assert.FileExists(t, path)
}

func TestAcquire_RemovesStaleLock(t *testing.T) {
	logging.DisableLoggingForTest(t)

	tests := []struct {
		name    string
		content string
	}{
		{"dead pid", "999999999"},
		{"garbage", "not-a-pid"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "run.lock")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			l, err := Acquire(path)
			require.NoError(t, err)
			defer l.Release()

			b, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, strconv.Itoa(os.Getpid()), string(b))
		})
	}
}

func TestAcquire_MissingDirectory(t *testing.T) {
	_, err := Acquire(filepath.Join(t.TempDir(), "missing", "run.lock"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errors.ErrAlreadyRunning)
}
