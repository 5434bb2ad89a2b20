package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondJSONWithETag serializes payload once, tags it with a weak validator
// and answers 304 when If-None-Match already names it. Analytics payloads are
// per organization, so shared caches must not keep them.
func RespondJSONWithETag(ctx *gin.Context, status int, payload any) {
	ctx.Header("Cache-Control", "private, no-cache")
	ctx.Header("Vary", "Authorization")

	body, err := json.Marshal(payload)
	if err != nil {
		ctx.JSON(status, payload)
		return
	}

	etag := weakETag(body)
	ctx.Header("ETag", etag)

	if notModified(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(status, "application/json; charset=utf-8", body)
}

func weakETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

// notModified uses weak comparison: W/"x" and "x" name the same representation.
func notModified(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	want := opaqueTag(etag)
	for _, candidate := range strings.Split(header, ",") {
		if opaqueTag(candidate) == want {
			return true
		}
	}
	return false
}

func opaqueTag(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "W/")
}
