// Package pagination resolves opaque page tokens and page sizes for list RPCs.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	pageSize := int(value)
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Page is a window over an ordered list.
type Page struct {
	Offset        int
	Limit         int
	NextPageToken string
}

// OffsetPage resolves a page token and size into a window over total items.
// Tokens are opaque to callers; an empty token starts at the first item.
// scope identifies the list being paged, typically the filter and parent that
// selected it, and a token minted for another scope is rejected.
func OffsetPage(pageToken string, pageSize int32, total int, scope string, cfg PageSizeConfig) (Page, error) {
	offset := 0
	if pageToken != "" {
		decoded, err := decodeToken(pageToken, scope)
		if err != nil {
			return Page{}, err
		}
		offset = decoded
	}
	if offset > total {
		offset = total
	}
	limit := ClampPageSize(pageSize, cfg)
	if offset+limit > total {
		limit = total - offset
	}
	page := Page{Offset: offset, Limit: limit}
	if next := offset + limit; next < total {
		page.NextPageToken = encodeToken(next, scope)
	}
	return page, nil
}

const offsetTokenPrefix = "offset:"

// ErrScopeMismatch reports a token reused with a different filter or parent.
var ErrScopeMismatch = errors.New("page_token does not match the request")

func encodeToken(offset int, scope string) string {
	raw := offsetTokenPrefix + strconv.Itoa(offset) + ":" + fingerprint(scope)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeToken(token, scope string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid page_token: %w", err)
	}
	rest, ok := strings.CutPrefix(string(raw), offsetTokenPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid page_token: %q", token)
	}
	offsetText, got, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, fmt.Errorf("invalid page_token: %q", token)
	}
	offset, err := strconv.Atoi(offsetText)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid page_token: %q", token)
	}
	if got != fingerprint(scope) {
		return 0, ErrScopeMismatch
	}
	return offset, nil
}

func fingerprint(scope string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scope))
	return strconv.FormatUint(h.Sum64(), 36)
}
