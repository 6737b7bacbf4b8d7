package testutils

import "strings"

// OverBytesUnderRunes строка из count рун, длина которой в байтах в 4 раза больше.
func OverBytesUnderRunes(count int) string {
	symbol := "😁" // 4 байта, 1 руна
	return strings.Repeat(symbol, count)
}
