// Package lstring is a small collection of string utilities for the string
// library. Strings are treated as byte sequences.
package lstring

import (
	"strings"

	"github.com/airtrack/luna-sub000/src/lstring/format"
)

// Format will return a formatted string with values matching patterns that
// satisfy printf formatting.
func Format(pattern string, args ...any) (string, error) {
	return format.String(pattern, args...)
}

// Substring will get the substring of a string between two 1-based inclusive
// indexes. Negative indexes count back from the end of the string.
func Substring(str string, start, end int64) string {
	length := int64(len(str))
	i := substringIndex(start, length)
	j := substringIndex(end, length)
	i = max(i, 1)
	j = min(j, length)
	if i > j {
		return ""
	}
	return str[i-1 : j]
}

// Reverse will reverse the order of the bytes of the string.
func Reverse(str string) string {
	rstr := []byte(str)
	for i, j := 0, len(rstr)-1; i < j; i, j = i+1, j-1 {
		rstr[i], rstr[j] = rstr[j], rstr[i]
	}
	return string(rstr)
}

// Repeat will repeat a string *count* number of times and join them with the
// provided separator.
func Repeat(str, sep string, count int64) string {
	if count <= 0 {
		return ""
	}
	parts := make([]string, count)
	for i := int64(0); i < count; i++ {
		parts[i] = str
	}
	return strings.Join(parts, sep)
}

func substringIndex(i, strLen int64) int64 {
	if i < 0 {
		return max(strLen+i+1, 0)
	}
	return i
}
