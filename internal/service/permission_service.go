package service

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edusight/edusight-api/internal/models"
)

// seedAccount describes one entry of the fixed credential store. Hashes are
// derived from the seed passwords once, when the registry is built.
type seedAccount struct {
	username string
	password string
	fullName string
	email    string
	scope    models.AccessScope
	active   bool
}

var seedAccounts = []seedAccount{
	{
		username: "super_admin",
		password: "admin123",
		fullName: "Super Administrator",
		email:    "super@edusight.io",
		scope: models.AccessScope{
			Role:             models.RoleSuperAdmin,
			CanViewSensitive: true,
			CanExport:        true,
		},
		active: true,
	},
	{
		username: "north_admin",
		password: "north123",
		fullName: "North Region Administrator",
		email:    "north@edusight.io",
		scope: models.AccessScope{
			Role:             models.RoleRegionAdmin,
			Regions:          []string{"North"},
			CanViewSensitive: true,
			CanExport:        true,
		},
		active: true,
	},
	{
		username: "south_admin",
		password: "south123",
		fullName: "South Region Administrator",
		email:    "south@edusight.io",
		scope: models.AccessScope{
			Role:             models.RoleRegionAdmin,
			Regions:          []string{"South"},
			CanViewSensitive: true,
		},
		active: true,
	},
	{
		username: "grade89_admin",
		password: "grade123",
		fullName: "Grade 8-9 Administrator",
		email:    "grade89@edusight.io",
		scope: models.AccessScope{
			Role:   models.RoleGradeAdmin,
			Grades: []string{"Grade 8", "Grade 9"},
		},
		active: true,
	},
	{
		username: "classab_admin",
		password: "class123",
		fullName: "Class A-B Administrator",
		email:    "classab@edusight.io",
		scope: models.AccessScope{
			Role:    models.RoleClassAdmin,
			Classes: []string{"A", "B"},
		},
		active: true,
	},
	{
		username: "mathsci_admin",
		password: "subject123",
		fullName: "Math & Science Administrator",
		email:    "mathsci@edusight.io",
		scope: models.AccessScope{
			Role:     models.RoleSubjectAdmin,
			Subjects: []string{"Mathematics", "Science"},
		},
		active: true,
	},
	{
		username: "east67_admin",
		password: "combined123",
		fullName: "East Region Grade 6-7 Administrator",
		email:    "east67@edusight.io",
		scope: models.AccessScope{
			Role:      models.RoleRegionAdmin,
			Regions:   []string{"East"},
			Grades:    []string{"Grade 6", "Grade 7"},
			CanExport: true,
		},
		active: true,
	},
}

// PermissionService is the in-memory permission registry. It is built once
// at process start and never mutated afterwards, so concurrent reads need
// no locking.
type PermissionService struct {
	accounts map[string]models.Account
	logger   *zap.Logger
}

// NewPermissionService seeds the registry and hashes the seed passwords.
func NewPermissionService(logger *zap.Logger) (*PermissionService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	accounts := make(map[string]models.Account, len(seedAccounts))
	createdAt := time.Now().UTC()
	for _, seed := range seedAccounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", seed.username, err)
		}
		accounts[seed.username] = models.Account{
			Username:     seed.username,
			PasswordHash: string(hash),
			FullName:     seed.fullName,
			Email:        seed.email,
			Scope:        seed.scope,
			Active:       seed.active,
			CreatedAt:    createdAt,
		}
	}

	logger.Info("permission registry seeded", zap.Int("accounts", len(accounts)))
	return &PermissionService{accounts: accounts, logger: logger}, nil
}

// Authenticate verifies the supplied credentials. It returns false for an
// unknown username, an inactive account, or a wrong password without
// distinguishing which check failed.
func (s *PermissionService) Authenticate(username, password string) (*models.Account, bool) {
	account, ok := s.accounts[username]
	if !ok || !account.Active {
		return nil, false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, false
	}
	return &account, true
}

// Lookup returns the account for a username.
func (s *PermissionService) Lookup(username string) (*models.Account, bool) {
	account, ok := s.accounts[username]
	if !ok {
		return nil, false
	}
	return &account, true
}

// ResolveScope returns the access scope for a username.
func (s *PermissionService) ResolveScope(username string) (models.AccessScope, bool) {
	account, ok := s.accounts[username]
	if !ok {
		return models.AccessScope{}, false
	}
	return account.Scope, true
}

// IsAuthorized reports whether the scope permits a record carrying the given
// dimension values. Dimensions absent from the scope's allow-lists impose no
// constraint; the unrestricted role always passes.
func (s *PermissionService) IsAuthorized(scope models.AccessScope, filters map[models.Dimension]string) bool {
	if scope.Unrestricted() {
		return true
	}
	for dim, value := range filters {
		allowed := scope.AllowList(dim)
		if len(allowed) == 0 {
			continue
		}
		if !contains(allowed, value) {
			return false
		}
	}
	return true
}

// AllowedFilterSet returns the allow-lists keyed by dimension. Dimensions
// without a constraint are omitted; the unrestricted role yields an empty
// mapping.
func (s *PermissionService) AllowedFilterSet(scope models.AccessScope) map[models.Dimension][]string {
	filters := make(map[models.Dimension][]string)
	if scope.Unrestricted() {
		return filters
	}
	for _, dim := range []models.Dimension{
		models.DimensionRegion,
		models.DimensionGrade,
		models.DimensionClass,
		models.DimensionSubject,
	} {
		if allowed := scope.AllowList(dim); len(allowed) > 0 {
			filters[dim] = allowed
		}
	}
	return filters
}

// Accounts lists every registered account without credential material.
func (s *PermissionService) Accounts() []models.AccountInfo {
	infos := make([]models.AccountInfo, 0, len(s.accounts))
	for _, account := range s.accounts {
		infos = append(infos, models.AccountInfo{
			Username:     account.Username,
			FullName:     account.FullName,
			Email:        account.Email,
			Role:         account.Scope.Role,
			Active:       account.Active,
			Restrictions: account.Scope,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Username < infos[j].Username })
	return infos
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
