package httpkit

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/sha3"
)

// StrongETag renders the entity tag for a single versioned resource,
// e.g. "lead-<id>-<version>".
func StrongETag(kind, id string, version int64) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%s-%s-%d", kind, id, version))
}

// WeakETag renders a weak validator over an arbitrary set of parts, used for
// collection responses.
func WeakETag(parts ...string) string {
	h := sha3.New256()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return `W/"` + hex.EncodeToString(h.Sum(nil)[:12]) + `"`
}

// IfMatchVersion reads a strong If-Match header for the given resource.
// present is false when the header is absent or "*". A header that names a
// different resource, or is malformed, yields ok=false.
func IfMatchVersion(c *gin.Context, kind, id string) (version int64, present bool, ok bool) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" || raw == "*" {
		return 0, false, true
	}
	if strings.HasPrefix(raw, "W/") {
		return 0, true, false
	}
	tag, err := strconv.Unquote(raw)
	if err != nil {
		return 0, true, false
	}
	prefix := kind + "-" + id + "-"
	if !strings.HasPrefix(tag, prefix) {
		return 0, true, false
	}
	v, err := strconv.ParseInt(strings.TrimPrefix(tag, prefix), 10, 64)
	if err != nil || v < 1 {
		return 0, true, false
	}
	return v, true, true
}

// NotModified reports whether If-None-Match matches etag (weak comparison).
func NotModified(c *gin.Context, etag string) bool {
	header := c.GetHeader("If-None-Match")
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}
