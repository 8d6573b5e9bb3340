package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusight/edusight-api/internal/models"
)

func newTestRegistry(t *testing.T) *PermissionService {
	t.Helper()
	svc, err := NewPermissionService(nil)
	require.NoError(t, err)
	return svc
}

func TestAuthenticateKnownAccounts(t *testing.T) {
	svc := newTestRegistry(t)

	account, ok := svc.Authenticate("super_admin", "admin123")
	require.True(t, ok)
	assert.Equal(t, models.RoleSuperAdmin, account.Scope.Role)
	assert.True(t, account.Scope.CanViewSensitive)
	assert.True(t, account.Scope.CanExport)

	account, ok = svc.Authenticate("north_admin", "north123")
	require.True(t, ok)
	assert.Equal(t, []string{"North"}, account.Scope.Regions)
}

func TestAuthenticateFailuresAreUndistinguished(t *testing.T) {
	svc := newTestRegistry(t)

	_, okUnknown := svc.Authenticate("ghost", "admin123")
	_, okWrongPassword := svc.Authenticate("super_admin", "wrong")
	assert.False(t, okUnknown)
	assert.False(t, okWrongPassword)
}

func TestAuthenticateNoLockout(t *testing.T) {
	svc := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		_, ok := svc.Authenticate("super_admin", "wrong")
		assert.False(t, ok)
	}
	_, ok := svc.Authenticate("super_admin", "admin123")
	assert.True(t, ok)
}

func TestResolveScope(t *testing.T) {
	svc := newTestRegistry(t)

	scope, ok := svc.ResolveScope("grade89_admin")
	require.True(t, ok)
	assert.Equal(t, []string{"Grade 8", "Grade 9"}, scope.Grades)
	assert.False(t, scope.CanViewSensitive)
	assert.False(t, scope.CanExport)

	_, ok = svc.ResolveScope("ghost")
	assert.False(t, ok)
}

func TestIsAuthorizedAbsentDimensionIsUnconstrained(t *testing.T) {
	svc := newTestRegistry(t)
	scope, ok := svc.ResolveScope("north_admin")
	require.True(t, ok)

	// The region admin has no grade allow-list, so any grade passes as long
	// as the region matches.
	assert.True(t, svc.IsAuthorized(scope, map[models.Dimension]string{
		models.DimensionRegion: "North",
		models.DimensionGrade:  "Grade 10",
	}))
	assert.False(t, svc.IsAuthorized(scope, map[models.Dimension]string{
		models.DimensionRegion: "South",
	}))
}

func TestIsAuthorizedCombinedScope(t *testing.T) {
	svc := newTestRegistry(t)
	scope, ok := svc.ResolveScope("east67_admin")
	require.True(t, ok)

	assert.True(t, svc.IsAuthorized(scope, map[models.Dimension]string{
		models.DimensionRegion: "East",
		models.DimensionGrade:  "Grade 6",
	}))
	// Region matches but the grade falls outside the allow-list.
	assert.False(t, svc.IsAuthorized(scope, map[models.Dimension]string{
		models.DimensionRegion: "East",
		models.DimensionGrade:  "Grade 10",
	}))
}

func TestIsAuthorizedUnrestrictedIgnoresAllowLists(t *testing.T) {
	svc := newTestRegistry(t)

	scope := models.AccessScope{Role: models.RoleSuperAdmin, Regions: []string{"North"}}
	assert.True(t, svc.IsAuthorized(scope, map[models.Dimension]string{
		models.DimensionRegion: "South",
	}))
}

func TestAllowedFilterSet(t *testing.T) {
	svc := newTestRegistry(t)

	scope, _ := svc.ResolveScope("east67_admin")
	filters := svc.AllowedFilterSet(scope)
	assert.Equal(t, map[models.Dimension][]string{
		models.DimensionRegion: {"East"},
		models.DimensionGrade:  {"Grade 6", "Grade 7"},
	}, filters)

	super, _ := svc.ResolveScope("super_admin")
	assert.Empty(t, svc.AllowedFilterSet(super))
}

func TestAccountsListing(t *testing.T) {
	svc := newTestRegistry(t)

	accounts := svc.Accounts()
	require.Len(t, accounts, 7)
	for i := 1; i < len(accounts); i++ {
		assert.Less(t, accounts[i-1].Username, accounts[i].Username)
	}
	for _, account := range accounts {
		assert.NotEmpty(t, account.FullName)
		assert.NotEmpty(t, account.Email)
	}
}

func TestLookup(t *testing.T) {
	svc := newTestRegistry(t)

	account, ok := svc.Lookup("mathsci_admin")
	require.True(t, ok)
	assert.Equal(t, []string{"Mathematics", "Science"}, account.Scope.Subjects)

	_, ok = svc.Lookup("ghost")
	assert.False(t, ok)
}
