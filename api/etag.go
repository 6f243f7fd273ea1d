package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// cachedJSON is a pre-rendered response body for read-only reference data
// (pay matrix, rate table) with a content hash ETag.
type cachedJSON struct {
	body []byte
	etag string
}

func newCachedJSON(v any) (cachedJSON, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return cachedJSON{}, err
	}
	body = append(body, '\n')
	return cachedJSON{
		body: body,
		etag: `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`,
	}, nil
}

// etagMatches implements If-None-Match for strong and weak validators.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}

func (c cachedJSON) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", c.etag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if inm := r.Header.Get("If-None-Match"); inm != "" && etagMatches(inm, c.etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(c.body)
}
