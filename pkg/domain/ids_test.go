package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rcaflow/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseEventID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCompanyID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseAnalysisID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, AnalysisID(validUUID), id)
	})
}

// TestParseID_SecurityInvariants validates parsing at API entry points.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE users;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSiteID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestTenantIsolation keeps company IDs distinct from site IDs built from the same UUID.
func TestTenantIsolation(t *testing.T) {
	companyA := NewCompanyID()
	companyB := NewCompanyID()
	assert.NotEqual(t, companyA, companyB)
	assert.False(t, companyA.IsNil())
	assert.True(t, CompanyID{}.IsNil())
}

func TestJSONEncoding(t *testing.T) {
	type doc struct {
		EventID EventID `json:"eventId"`
		SiteID  SiteID  `json:"siteId"`
	}

	t.Run("ids encode as canonical strings", func(t *testing.T) {
		in := doc{EventID: NewEventID(), SiteID: NewSiteID()}
		raw, err := json.Marshal(in)
		require.NoError(t, err)
		assert.Contains(t, string(raw), in.EventID.String())

		var out doc
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, in, out)
	})

	t.Run("empty string decodes to nil id", func(t *testing.T) {
		var out doc
		require.NoError(t, json.Unmarshal([]byte(`{"eventId":"","siteId":""}`), &out))
		assert.True(t, out.EventID.IsNil())
		assert.True(t, out.SiteID.IsNil())
	})
}
