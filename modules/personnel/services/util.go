package services

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const defaultMaxMessageBytes = 4096

// truncateString returns s as valid UTF-8 of at most maxBytes bytes. Invalid bytes become
// U+FFFD and a rune cut by the limit is dropped.
func truncateString(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func logrusNop() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}
