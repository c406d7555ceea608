package dispatch

import (
	"strings"

	"github.com/google/uuid"
)

// ReferenceID builds "<issuer>-<TARGETID>-<token>".
func ReferenceID(issuer, targetID, token string) string {
	return issuer + "-" + strings.ToUpper(targetID) + "-" + token
}

// timeToken returns a UUIDv7, which is unique and ordered by creation time.
func timeToken() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
