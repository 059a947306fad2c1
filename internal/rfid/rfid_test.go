package rfid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoRead(t *testing.T) {
	r := NewDemo(map[string]string{
		"embedded":    "e3b4a936",
		"intelligent": "05D4E6F7",
	})

	uid, err := r.Read(context.Background(), "embedded")
	require.NoError(t, err)
	assert.Equal(t, "e3b4a936", uid)

	uid, err = r.Read(context.Background(), "intelligent")
	require.NoError(t, err)
	assert.Equal(t, "05D4E6F7", uid)

	_, err = r.Read(context.Background(), "unknown")
	assert.Error(t, err)
}
