package utils

import (
	"fmt"
	"regexp"
)

var phoneRe = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// ValidPhone reports whether the number looks like an international phone
// number, e.g. +243970000000
func ValidPhone(number string) bool {
	return phoneRe.MatchString(number)
}

// MemberCode formats the unique member code from a sequence number
func MemberCode(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}
