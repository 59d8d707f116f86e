// Package redact strips secrets and personal data from values before they are
// placed in a language-model prompt.
package redact

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Sentinel replaces every masked string.
const Sentinel = "[redacted]"

// MaxListItems bounds every list before its items are visited.
const MaxListItems = 50

// opaqueMinLength is the length above which a token-shaped string is masked.
const opaqueMinLength = 40

var (
	// sensitiveKeys drop a whole mapping entry when contained in its key.
	sensitiveKeys = []string{
		"token",
		"access_token",
		"refresh_token",
		"password",
		"passwd",
		"secret",
		"api_key",
		"apikey",
		"credential",
		"cookie",
		"jwt",
		"bearer",
		"client_secret",
	}

	// valueMarkers mask a string value when contained in it.
	valueMarkers = []string{"bearer ", "token", "password", "secret", "apikey", "api_key"}

	// piiKeyMarkers mask any string stored under a key containing them.
	piiKeyMarkers = []string{"name", "user", "owner"}

	secretPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^sk-[A-Za-z0-9]{20,}$`),
		regexp.MustCompile(`^eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`),
		regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	}

	opaquePattern = regexp.MustCompile(`^[A-Za-z0-9._=-]+$`)
)

// Redact sanitizes v without a key context.
func Redact(v any) any {
	return redact(v, "", false)
}

// RedactKey sanitizes v as the value stored under key. Strings under keys that
// look like names, users or owners are treated as personal data.
func RedactKey(key string, v any) any {
	return redact(v, key, true)
}

// Text sanitizes a single string.
func Text(s string) string {
	return redactString(s, "", false)
}

// IsSensitiveKey reports whether a mapping entry with this key is dropped.
func IsSensitiveKey(key string) bool {
	return containsAny(strings.ToLower(key), sensitiveKeys)
}

func redact(v any, key string, hasKey bool) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return val
	case string:
		return redactString(val, key, hasKey)
	case time.Time:
		return redactString(val.Format(time.RFC3339), key, hasKey)
	case []any:
		return redactList(len(val), func(i int) any { return val[i] }, key, hasKey)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if IsSensitiveKey(k) {
				continue
			}
			out[k] = redact(item, k, true)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		return redactList(rv.Len(), func(i int) any { return rv.Index(i).Interface() }, key, hasKey)
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := fmt.Sprint(iter.Key().Interface())
			if IsSensitiveKey(k) {
				continue
			}
			out[k] = redact(iter.Value().Interface(), k, true)
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return redact(rv.Elem().Interface(), key, hasKey)
	}

	return redactString(fmt.Sprint(v), key, hasKey)
}

func redactList(n int, at func(int) any, key string, hasKey bool) []any {
	if n > MaxListItems {
		n = MaxListItems
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, redact(at(i), key, hasKey))
	}
	return out
}

func redactString(s, key string, hasKey bool) string {
	if s == Sentinel {
		return s
	}
	if containsAny(strings.ToLower(s), valueMarkers) {
		return Sentinel
	}
	for _, pattern := range secretPatterns {
		if pattern.MatchString(s) {
			return Sentinel
		}
	}
	if len(s) > opaqueMinLength && opaquePattern.MatchString(s) {
		return Sentinel
	}
	if hasKey && containsAny(strings.ToLower(key), piiKeyMarkers) {
		return Sentinel
	}
	return s
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
