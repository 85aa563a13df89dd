package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// DigestPassword is the fixed one-way digest used for knowledge category
// passwords. Input is trimmed before hashing so pasted passwords with
// surrounding whitespace still verify.
func DigestPassword(input string) string {
	return HashString(strings.TrimSpace(input))
}
