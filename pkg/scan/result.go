package scan

import (
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Result is the admitted decode of a session.
type Result struct {
	// RawText is the decoded payload, untouched.
	RawText string `json:"rawText"`

	// Identifier is what gets sent to the asset lookup.
	Identifier string `json:"identifier"`
}

// NewResult builds a result from decoded text.
func NewResult(raw string) Result {
	return Result{RawText: raw, Identifier: ParseIdentifier(raw)}
}

var jsonIDKeys = []string{
	"assetId", "asset_id", "identifier", "id",
	"assetTag", "asset_tag", "tag", "asset.id",
}

var queryIDKeys = []string{"id", "asset", "assetId"}

// ParseIdentifier extracts an asset identifier from a label payload.
// Labels printed by the console carry either a JSON object, a scan URL or
// an "asset:" prefix; anything else is returned verbatim.
func ParseIdentifier(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return raw
	}

	if strings.HasPrefix(text, "{") && gjson.Valid(text) {
		for _, key := range jsonIDKeys {
			if v := gjson.Get(text, key); v.Exists() && v.Type != gjson.JSON {
				if id := strings.TrimSpace(v.String()); id != "" {
					return id
				}
			}
		}
		return raw
	}

	if id, ok := identifierFromURL(text); ok {
		return id
	}

	if prefix, rest, ok := strings.Cut(text, ":"); ok && strings.EqualFold(prefix, "asset") {
		if id := strings.TrimSpace(rest); id != "" {
			return id
		}
	}

	return raw
}

func identifierFromURL(text string) (string, bool) {
	u, err := url.Parse(text)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque != "") {
		return "", false
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segs); i++ {
		switch {
		case segs[i] == "qr" && segs[i+1] == "scan" && i+2 < len(segs):
			if id, err := url.PathUnescape(segs[i+2]); err == nil && id != "" {
				return id, true
			}
		case segs[i] == "assets":
			if id, err := url.PathUnescape(segs[i+1]); err == nil && id != "" {
				return id, true
			}
		}
	}

	q := u.Query()
	for _, key := range queryIDKeys {
		if id := strings.TrimSpace(q.Get(key)); id != "" {
			return id, true
		}
	}
	return "", false
}
