package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]Identity{
		"tok-alice": {UserID: "alice", OrganizationID: "acme"},
	})

	id, err := v.Verify(context.Background(), "tok-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserID)
	assert.Equal(t, "acme", id.OrganizationID)

	_, err = v.Verify(context.Background(), "tok-unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
