package uuid

import (
	"github.com/google/uuid"
)

// New returns a lower case UUID v4 string
func New() string {
	return uuid.New().String()
}
