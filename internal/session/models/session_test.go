package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthbff/internal/permissions"
	"healthbff/pkg/domain"
)

func fullSession() *Session {
	created := time.Date(2025, 3, 1, 8, 0, 0, 123456789, time.UTC)
	rotated := created.Add(20 * time.Minute)
	birth := permissions.NewDate(1988, time.July, 4)
	term := permissions.NewDate(2026, time.December, 31)
	start := permissions.NewDate(2024, time.January, 1)
	return &Session{
		ID:                 "6f1c1f3e-8f5a-4c59-9a51-0d3e7f1b2c3d",
		SubjectID:          "sub-1",
		Email:              "parent@example.com",
		Name:               "Pat Parent",
		Persona:            domain.PersonaDelegate,
		ManagedMemberIDs:   []string{"D1", "D2"},
		ManagedMembersJSON: `[{"id":"D1"}]`,
		DelegateTypes:      []permissions.DelegateType{permissions.DelegateDAA, permissions.DelegateROI},
		IPAddress:          "203.0.113.5",
		UserAgentHash:      "uahash",
		DeviceFingerprint:  "fp",
		DeviceDisplayName:  "Chrome 120 on Linux",
		CreatedAt:          created,
		LastAccessedAt:     created.Add(time.Minute),
		RotatedAt:          &rotated,
		SupersededBy:       "",
		EnterpriseID:       "ENT-1",
		Birthdate:          &birth,
		IsResponsibleParty: true,
		EligibilityStatus:  "ACTIVE",
		TermDate:           &term,
		Permissions: permissions.NewPermissionSet("sub-1", domain.PersonaDelegate, []permissions.DependentAccess{
			permissions.NewDependentAccess("D1", "Kid", "child", map[permissions.DelegateType]permissions.DelegatePermission{
				permissions.DelegateDAA: {Active: true, StartDate: &start},
			}),
		}, created, 0),
		Tokens: Tokens{AccessToken: "at", RefreshToken: "rt", IDToken: "it", ExpiresAt: created.Add(time.Hour)},
	}
}

// Serializing and deserializing a record reproduces it field for field.
func TestSessionJSONRoundTrip(t *testing.T) {
	in := fullSession()
	first, err := json.Marshal(in)
	require.NoError(t, err)

	var out Session
	require.NoError(t, json.Unmarshal(first, &out))
	second, err := json.Marshal(&out)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.DelegateTypes, out.DelegateTypes)
	assert.Equal(t, *in.Birthdate, *out.Birthdate)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, in.RotatedAt.Equal(*out.RotatedAt))
	require.NotNil(t, out.Permissions)
	dep, ok := out.Permissions.Dependent("D1")
	require.True(t, ok)
	assert.True(t, dep.HasGrant(permissions.DelegateDAA))
	assert.Equal(t, in.Tokens.RefreshToken, out.Tokens.RefreshToken)
}

func TestClone(t *testing.T) {
	in := fullSession()
	cp := in.Clone()

	cp.ManagedMemberIDs[0] = "changed"
	*cp.RotatedAt = cp.RotatedAt.Add(time.Hour)
	cp.Permissions.Dependents[0].DependentID = "changed"

	assert.Equal(t, "D1", in.ManagedMemberIDs[0])
	assert.Equal(t, in.CreatedAt.Add(20*time.Minute), *in.RotatedAt)
	assert.Equal(t, "D1", in.Permissions.Dependents[0].DependentID)
	assert.Equal(t, in.Permissions.ExpiresAt, cp.Permissions.ExpiresAt)
}

func TestEffectiveRotatedAt(t *testing.T) {
	s := fullSession()
	assert.Equal(t, *s.RotatedAt, s.EffectiveRotatedAt())
	s.RotatedAt = nil
	assert.Equal(t, s.CreatedAt, s.EffectiveRotatedAt())
}
