package tool

import "github.com/google/uuid"

// GenerateUUIDV7 returns a time-ordered UUID used as primary key for new rows.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}
