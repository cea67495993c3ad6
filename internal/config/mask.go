package config

import (
	"regexp"
)

var (
	rePassword = regexp.MustCompile(`(?i)(password=)([^\s;&]+)`)
	reDSNPass  = regexp.MustCompile(`(://)([^:/@]+):([^@]+)(@)`)
	reMySQL    = regexp.MustCompile(`^([^:/@]+):([^@]+)(@tcp\()`)
	reAPIKey   = regexp.MustCompile(`(?i)(api[_-]?key=|bearer\s+)([A-Za-z0-9._-]+)`)
	reKeyLike  = regexp.MustCompile(`\b(gsk_|sk-|sk-ant-)[A-Za-z0-9_-]{8,}`)
)

// Mask replaces credentials in connection strings and error text with "***".
func Mask(s string) string {
	out := rePassword.ReplaceAllString(s, "$1***")
	out = reDSNPass.ReplaceAllString(out, "$1$2:***$4")
	out = reMySQL.ReplaceAllString(out, "$1:***$3")
	out = reAPIKey.ReplaceAllString(out, "$1***")
	out = reKeyLike.ReplaceAllString(out, "$1***")
	return out
}
