package errs

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackend_NilPassthrough(t *testing.T) {
	t.Parallel()
	require.NoError(t, Backend("Local", "save to", nil))
}

func TestBackendError_MessageAndUnwrap(t *testing.T) {
	t.Parallel()
	err := Backend("Remote", "save to", ErrVersionConflict)
	require.EqualError(t, err, "failed to save to Remote: version conflict")
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestNetwork_Classification(t *testing.T) {
	t.Parallel()
	plain := Network(io.ErrUnexpectedEOF, false)
	require.ErrorIs(t, plain, ErrNetwork)
	require.ErrorIs(t, plain, io.ErrUnexpectedEOF)
	require.False(t, errors.Is(plain, ErrTimeout))

	slow := Network(errors.New("deadline"), true)
	require.ErrorIs(t, slow, ErrNetwork)
	require.ErrorIs(t, slow, ErrTimeout)
}

func TestAggregate_NamesEveryBackend(t *testing.T) {
	t.Parallel()
	require.NoError(t, Aggregate(nil, nil))

	err := Aggregate(
		Backend("Local", "save to", ErrIO),
		nil,
		Backend("Remote", "save to", Network(io.EOF, false)),
	)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, ErrNetwork)
	require.Equal(t, []string{"Local", "Remote"}, Failed(err))
	require.Contains(t, err.Error(), "failed to save to Local")
	require.Contains(t, err.Error(), "failed to save to Remote")
}

func TestFailed_IgnoresForeignErrors(t *testing.T) {
	t.Parallel()
	require.Empty(t, Failed(errors.New("boom")))
	require.Empty(t, Failed(nil))
}
