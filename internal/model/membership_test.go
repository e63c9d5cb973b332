package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermission_Valid(t *testing.T) {
	require.True(t, PermissionRead.Valid())
	require.True(t, PermissionWrite.Valid())
	require.True(t, PermissionAdmin.Valid())

	require.False(t, PermissionUnauthorized.Valid())
	require.False(t, Permission("").Valid())
	require.False(t, Permission("superuser").Valid())
}

func TestPermission_Ordering(t *testing.T) {
	require.True(t, PermissionAdmin.AtLeast(PermissionWrite))
	require.True(t, PermissionWrite.AtLeast(PermissionRead))
	require.True(t, PermissionRead.AtLeast(PermissionRead))

	require.False(t, PermissionRead.AtLeast(PermissionWrite))
	require.False(t, PermissionWrite.AtLeast(PermissionAdmin))
	require.False(t, PermissionUnauthorized.AtLeast(PermissionRead))
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("permission", "must be one of read, write, admin")
	require.EqualError(t, err, "validation failed: permission: must be one of read, write, admin")
	require.True(t, IsValidation(err))
	require.False(t, IsValidation(ErrInvalid))
}
