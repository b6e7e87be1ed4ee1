package textfilter

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var linkRegex = regexp.MustCompile(`(?i)(https?://|t\.me|telegram\.me)`)

// MatchBlacklisted returns the first word that appears in text as a
// whole-word, case-insensitive match.
func MatchBlacklisted(text string, words []string) (string, bool) {
	if text == "" || len(words) == 0 {
		return "", false
	}
	for _, word := range words {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return word, true
		}
	}
	return "", false
}

// ContainsLink reports whether text carries a link: an http(s) URL, a
// Telegram invite host, or a unicode host that normalizes to one.
func ContainsLink(text string) bool {
	if text == "" {
		return false
	}
	if linkRegex.MatchString(text) {
		return true
	}
	for _, token := range strings.Fields(text) {
		if isTelegramHost(normalizeHost(token)) {
			return true
		}
	}
	return false
}

// normalizeHost extracts the host part of a bare link token and folds IDN
// hosts to ASCII, so fullwidth variants like "ｔ.ｍｅ/abc" are caught like
// "t.me/abc".
func normalizeHost(token string) string {
	host := strings.ToLower(token)
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return host
}

func isTelegramHost(host string) bool {
	return host == "t.me" || host == "telegram.me" ||
		strings.HasSuffix(host, ".t.me") || strings.HasSuffix(host, ".telegram.me")
}
