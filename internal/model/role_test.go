package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  Role
		expectErr bool
	}{
		{name: "Enum value", raw: "site-incharge", expected: RoleSiteIncharge},
		{name: "Display label", raw: "Site Incharge", expected: RoleSiteIncharge},
		{name: "Admin label", raw: "Admin", expected: RoleAdmin},
		{name: "Wrong case", raw: "site incharge", expectErr: true},
		{name: "Upper enum", raw: "DRIVER", expectErr: true},
		{name: "Empty", raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := ParseRole(tc.raw)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrInvalidRole)
				assert.Equal(t, RoleUnknown, r)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, r)
		})
	}
}

func TestRole_Label(t *testing.T) {
	assert.Equal(t, "Site Incharge", RoleSiteIncharge.Label())
	assert.Equal(t, "Diesel Manager", RoleDieselManager.Label())
	assert.Equal(t, "Unknown", Role("supervisor").Label())
	assert.False(t, Role("supervisor").Valid())
}

func TestUserProfile_UnmarshalUnknownRole(t *testing.T) {
	var p UserProfile
	err := json.Unmarshal([]byte(`{"employee_number":"E100","role":"supervisor"}`), &p)
	require.NoError(t, err)
	assert.Equal(t, RoleUnknown, p.Role)

	err = json.Unmarshal([]byte(`{"employee_number":"E100","role":"Site Incharge","tanks":[{"id":"T1","name":"Main"}]}`), &p)
	require.NoError(t, err)
	assert.Equal(t, RoleSiteIncharge, p.Role)

	tank, ok := p.PrimaryTank()
	assert.True(t, ok)
	assert.Equal(t, "Main", tank.Name)
}
