package sumup

import (
	"strings"

	"github.com/fatflowers/posbridge/pkg/types"
)

var statusTable = map[string]types.AttemptStatus{
	"SUCCESSFUL": types.AttemptStatusApproved,
	"APPROVED":   types.AttemptStatusApproved,
	"PAID":       types.AttemptStatusApproved,
	"DECLINED":   types.AttemptStatusDeclined,
	"CANCELLED":  types.AttemptStatusCancelled,
	"CANCELED":   types.AttemptStatusCancelled,
	"ERROR":      types.AttemptStatusError,
	"FAILED":     types.AttemptStatusError,
}

// MapStatus maps a processor status to an attempt status. Unknown or empty
// values are PENDING.
func MapStatus(raw string) types.AttemptStatus {
	if s, ok := statusTable[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return types.AttemptStatusPending
}
