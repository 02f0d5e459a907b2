package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasUniversalAccess(t *testing.T) {
	t.Parallel()

	require.True(t, HasUniversalAccess(RoleAdmin))
	require.True(t, HasUniversalAccess(RoleEditor))
	require.False(t, HasUniversalAccess(RoleUser))
	require.False(t, HasUniversalAccess(Role("HEAD")))
}

func TestParseCardStatus(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"OPENED", "CLOSED", "FINISHED"} {
		got, ok := ParseCardStatus(s)
		require.True(t, ok)
		require.Equal(t, s, string(got))
	}
	_, ok := ParseCardStatus("opened")
	require.False(t, ok)
}

func TestUser_FullName(t *testing.T) {
	t.Parallel()

	u := User{FirstName: "Ivan", LastName: "Ivanov"}
	require.Equal(t, "Ivanov Ivan", u.FullName())
	u.Patronymic = "Ivanovich"
	require.Equal(t, "Ivanov Ivan Ivanovich", u.FullName())
}

func TestAvailability_Group(t *testing.T) {
	t.Parallel()

	a := &Availability{Statuses: map[string]CardStatus{
		"a": StatusOpened, "b": StatusClosed, "c": StatusClosed,
	}}
	require.ElementsMatch(t, []string{"b", "c"}, a.Group(StatusClosed))
	require.Empty(t, a.Group(StatusFinished))
}
