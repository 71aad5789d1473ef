package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleLevelOrdering(t *testing.T) {
	assert.Less(t, Level(RoleViewer), Level(RoleGovernance))
	assert.Less(t, Level(RoleGovernance), Level(RoleStaff))
	assert.Less(t, Level(RoleStaff), Level(RoleManager))
	assert.Less(t, Level(RoleManager), Level(RoleOwner))
}

func TestLevelUnknownRoleIsLowest(t *testing.T) {
	assert.Equal(t, -1, Level(Role("bogus")))
}

func TestMeetsRequiresAtLeastMinimum(t *testing.T) {
	assert.True(t, Meets(RoleManager, RoleStaff))
	assert.True(t, Meets(RoleOwner, RoleOwner))
	assert.False(t, Meets(RoleStaff, RoleManager))
	assert.False(t, Meets(Role("bogus"), RoleViewer))
}

func TestBearerTokenExtractsFromHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", bearerToken(r))
}

func TestBearerTokenEmptyWithoutPrefix(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc123")
	assert.Equal(t, "", bearerToken(r))
}

func TestBearerTokenEmptyWithoutHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", bearerToken(r))
}

func TestRoleFromContextDefaultsToEmpty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, Role(""), RoleFromContext(r.Context()))
}
