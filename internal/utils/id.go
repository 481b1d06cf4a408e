package utils

import "github.com/google/uuid"

// GenerateID returns a new random identifier for documents and QA entries.
func GenerateID() string {
	return uuid.New().String()
}
