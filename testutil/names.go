package testutil

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// ContainerName returns prefix with a random lowercase suffix so that a
// container left over from an aborted run does not block the next one.
func ContainerName(prefix string) string {
	return prefix + "-" + strings.ToLower(gofakeit.LetterN(6))
}
