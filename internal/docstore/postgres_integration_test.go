//go:build integration

package docstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"rcaflow/internal/docstore"
	"rcaflow/internal/platform/postgres"
	"rcaflow/pkg/testutil/containers"
)

func TestPostgresBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	_, err := postgres.Migrate(context.Background(), pg.DB)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	suite.Run(t, &BackendSuite{newBackend: func() docstore.Backend { return docstore.NewPostgres(pg.DB) }})
}
