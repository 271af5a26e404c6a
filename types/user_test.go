package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"admin":  RoleAdmin,
		" User ": RoleUser,
		"GUEST":  RoleGuest,
	}
	for input, want := range cases {
		got, err := ParseRole(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got)
	}

	for _, input := range []string{"", "root", "administrator"} {
		_, err := ParseRole(input)
		require.Error(t, err, input)
	}
}

func TestRoleTitle(t *testing.T) {
	require.Equal(t, "Admin", RoleAdmin.Title())
	require.Equal(t, "Guest", RoleGuest.Title())
	require.Equal(t, "", Role("").Title())
	require.True(t, RoleAdmin.IsAdmin())
	require.False(t, RoleUser.IsAdmin())
}
