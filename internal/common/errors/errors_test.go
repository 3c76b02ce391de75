package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabaseError(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewDatabaseError("update user", cause).WithUserID(42)

	assert.Equal(t, ErrCodeDatabaseError, err.Code)
	assert.Contains(t, err.Error(), "update user")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, int64(42), err.UserID)
	assert.Equal(t, "update user", err.Details["operation"])
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("deadlock detected")
	err := Wrap(cause, ErrCodeTransactionFailed, "commit transaction")

	require.ErrorIs(t, err, cause)

	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, ErrCodeTransactionFailed, appErr.Code)
}

func TestErrorWithoutCause(t *testing.T) {
	err := New(ErrCodeDatabaseError, "something broke")
	assert.Equal(t, "[DATABASE_ERROR] something broke", err.Error())
	assert.NoError(t, err.Unwrap())
}
