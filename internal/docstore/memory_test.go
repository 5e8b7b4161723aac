package docstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"rcaflow/internal/docstore"
)

func TestMemoryBackend(t *testing.T) {
	suite.Run(t, &BackendSuite{newBackend: func() docstore.Backend { return docstore.NewMemory() }})
}

func TestMemoryRejectsInvalidJSON(t *testing.T) {
	m := docstore.NewMemory()
	err := m.Put(context.Background(), "c", "id", []byte("{"))
	require.Error(t, err)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()
	require.NoError(t, m.Put(ctx, "c", "id", []byte(`{"a":1}`)))

	body, err := m.Get(ctx, "c", "id")
	require.NoError(t, err)
	body[2] = 'b'

	again, err := m.Get(ctx, "c", "id")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(again))
}

func TestQueryBuildersDoNotAlias(t *testing.T) {
	base := docstore.Where("companyId", "c1")
	open := base.And("status", "open")
	closed := base.And("status", "closed")

	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "open", open.Filters[1].Value)
	assert.Equal(t, "closed", closed.Filters[1].Value)
}
