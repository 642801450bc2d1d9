package tool

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abc", 300))
	require.Equal(t, 300, len(Truncate(strings.Repeat("x", 1000), 300)))
	require.Equal(t, "øæ", Truncate("øæå", 2))
	require.Equal(t, "", Truncate("abc", 0))
}

func TestGenerateUUIDV7(t *testing.T) {
	id, err := uuid.Parse(GenerateUUIDV7())
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), id.Version())
}
