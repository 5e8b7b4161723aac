package main

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"rcaflow/internal/docstore"
	"rcaflow/internal/tenancy"
	tenancyservice "rcaflow/internal/tenancy/service"
	id "rcaflow/pkg/domain"
)

func loadTestSeed(t *testing.T) *seedFile {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", "clave-admin-2025")
	t.Setenv("SEED_USER_PASSWORD", "clave-turno-2025")
	f, err := os.Open("testdata/seed.yaml")
	require.NoError(t, err)
	defer f.Close()
	seed, err := loadSeed(f)
	require.NoError(t, err)
	return seed
}

func TestApplySeedIsIdempotent(t *testing.T) {
	seed := loadTestSeed(t)
	svc := tenancy.NewService(docstore.NewMemory(), tenancyservice.WithBcryptCost(bcrypt.MinCost))
	ctx := seedContext(context.Background(), time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	res, err := applySeed(ctx, svc, seed)
	require.NoError(t, err)
	assert.Equal(t, seedResult{Created: 5}, res)

	res, err = applySeed(ctx, svc, seed)
	require.NoError(t, err)
	assert.Equal(t, seedResult{Skipped: 5}, res)

	admin, err := svc.FindByEmail(ctx, "jefa.mantencion@losandes.cl")
	require.NoError(t, err)
	assert.Equal(t, id.RoleAdmin, admin.Role)
	assert.Equal(t, id.PermissionValidator, admin.Permission)
	assert.Empty(t, admin.SiteIDs)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("clave-admin-2025")))

	supervisor, err := svc.FindByEmail(ctx, "supervisor@losandes.cl")
	require.NoError(t, err)
	assert.Equal(t, id.RoleUser, supervisor.Role)
	assert.Len(t, supervisor.SiteIDs, 1)
}

func TestLoadSeedRejectsUnknownFields(t *testing.T) {
	_, err := loadSeed(strings.NewReader("companies:\n  - name: X\n    plants: []\n"))
	require.ErrorContains(t, err, "parse seed file")
}

func TestApplySeedRejectsUnknownSite(t *testing.T) {
	seed := &seedFile{Companies: []seedCompany{{
		Name:  "Forestal Sur",
		Users: []seedUser{{Email: "a@forestal.cl", Name: "A", Password: "clave-larga-1", Sites: []string{"Aserradero"}}},
	}}}
	svc := tenancy.NewService(docstore.NewMemory(), tenancyservice.WithBcryptCost(bcrypt.MinCost))

	_, err := applySeed(seedContext(context.Background(), time.Now()), svc, seed)
	require.ErrorContains(t, err, `unknown site "Aserradero"`)
}
