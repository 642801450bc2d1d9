package attempttest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/models"
)

func TestMemoryStore_ScanPages(t *testing.T) {
	m := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, ref := range []string{"r1", "r2", "r3"} {
		m.Put(&models.PaymentAttempt{OrderRef: ref, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	refs := func(res *attempt.ScanResponse) []string {
		out := make([]string, 0, len(res.Items))
		for _, a := range res.Items {
			out = append(out, a.OrderRef)
		}
		return out
	}

	res, err := m.Scan(context.Background(), &attempt.ScanRequest{Size: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"r3", "r2"}, refs(res))
	require.EqualValues(t, 3, res.Total)

	// The last page is shorter than Size.
	res, err = m.Scan(context.Background(), &attempt.ScanRequest{From: 2, Size: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, refs(res))
	require.EqualValues(t, 3, res.Total)

	res, err = m.Scan(context.Background(), &attempt.ScanRequest{From: 5, Size: 2})
	require.NoError(t, err)
	require.Empty(t, res.Items)

	res, err = m.Scan(context.Background(), &attempt.ScanRequest{From: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"r2", "r1"}, refs(res))
}
