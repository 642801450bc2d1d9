package payment

import (
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
)

// coalesce fills *dst from v only when dst is unset and v is non-empty.
func coalesce(dst **string, v string) bool {
	if *dst != nil && **dst != "" {
		return false
	}
	if v == "" {
		return false
	}
	*dst = &v
	return true
}

// Merge copies identifying and descriptive fields from tx onto a without
// overwriting anything already stored. It reports whether a changed.
func Merge(a *models.PaymentAttempt, tx *sumup.Transaction) bool {
	if a == nil || tx == nil {
		return false
	}
	changed := false
	for _, f := range []struct {
		dst **string
		v   string
	}{
		{&a.TransactionID, tx.TransactionID},
		{&a.ClientTransactionID, tx.ClientTransactionID},
		{&a.Scheme, tx.Scheme},
		{&a.Last4, tx.Last4},
		{&a.ApprovalCode, tx.ApprovalCode},
		{&a.Message, tx.Message},
	} {
		if coalesce(f.dst, f.v) {
			changed = true
		}
	}
	return changed
}
