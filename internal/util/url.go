package util

import (
	"net/url"
	"strings"
)

// MatchRedirectURI reports whether candidate is allowed by a registered
// redirect pattern. Without a wildcard the comparison is exact. A pattern may
// contain a single "*" that stands for one whole host label or one whole path
// segment; it never spans a separator and never matches an empty string.
func MatchRedirectURI(pattern, candidate string) bool {
	if pattern == "" || candidate == "" {
		return false
	}
	if strings.ContainsAny(candidate, "\r\n") {
		return false
	}

	switch strings.Count(pattern, "*") {
	case 0:
		return pattern == candidate
	case 1:
	default:
		return false
	}

	idx := strings.Index(pattern, "*")
	prefix, suffix := pattern[:idx], pattern[idx+1:]

	if !strings.HasPrefix(candidate, prefix) || !strings.HasSuffix(candidate, suffix) {
		return false
	}
	if len(candidate) < len(prefix)+len(suffix)+1 {
		return false
	}
	wild := candidate[len(prefix) : len(candidate)-len(suffix)]

	schemeEnd := strings.Index(pattern, "://")
	if schemeEnd < 0 || idx < schemeEnd+3 {
		return false
	}
	hostEnd := strings.IndexAny(pattern[schemeEnd+3:], "/?#")
	inHost := hostEnd < 0 || idx < schemeEnd+3+hostEnd

	var before, after byte
	if idx > 0 {
		before = pattern[idx-1]
	}
	if len(suffix) > 0 {
		after = suffix[0]
	}

	if inHost {
		// "*" must be a full label: preceded by "://" or ".", followed by "."
		if before != '/' && before != '.' {
			return false
		}
		if after != '.' {
			return false
		}
		return !strings.ContainsAny(wild, "./:@?#%")
	}

	// "*" must be a full path segment
	if before != '/' {
		return false
	}
	if after != 0 && after != '/' && after != '?' && after != '#' {
		return false
	}
	if strings.ContainsAny(wild, "/?#") {
		return false
	}
	// Reject dot segments, encoded or not, so a wildcard cannot climb out
	// of its parent path.
	segment, err := url.PathUnescape(wild)
	if err != nil || strings.ContainsAny(segment, `/\`) {
		return false
	}
	return segment != "." && segment != ".."
}

// AppendQuery returns rawURL with params merged into its query string,
// preserving any parameters already present.
func AppendQuery(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
