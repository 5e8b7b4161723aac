//go:build integration

package docstore_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"rcaflow/internal/docstore"
	"rcaflow/pkg/testutil/containers"
)

func TestMongoBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	mc := containers.GetManager().GetMongo(t)
	db := mc.Client.Database("rcaflow_test")
	// Generous retries: the contract suite hammers one document from ten writers.
	suite.Run(t, &BackendSuite{newBackend: func() docstore.Backend { return docstore.NewMongo(db, 50) }})
}
