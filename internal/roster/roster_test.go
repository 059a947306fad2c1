package roster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEnrollAndLookup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	st := Student{TokenID: "e3b4a936", Roll: "1", Name: "Alice", Email: "alice@example.edu"}
	require.NoError(t, m.Enroll(ctx, "embedded", st))

	got, err := m.Lookup(ctx, "embedded", "e3b4a936")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	// Unknown token and unknown subject both come back nil, not an error.
	got, err = m.Lookup(ctx, "embedded", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = m.Lookup(ctx, "intelligent", "e3b4a936")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryEnrollDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	st := Student{TokenID: "e3b4a936", Name: "Alice"}
	require.NoError(t, m.Enroll(ctx, "embedded", st))

	err := m.Enroll(ctx, "embedded", Student{TokenID: "e3b4a936", Name: "Impostor"})
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	// The same token is free in a different subject.
	assert.NoError(t, m.Enroll(ctx, "intelligent", st))
}

func TestMemoryListKeepsEnrollmentOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, tok := range []string{"c", "a", "b"} {
		require.NoError(t, m.Enroll(ctx, "embedded", Student{TokenID: tok}))
	}

	students, err := m.List(ctx, "embedded")
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, "c", students[0].TokenID)
	assert.Equal(t, "a", students[1].TokenID)
	assert.Equal(t, "b", students[2].TokenID)
}
