package lookup

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Asset is the resolved record for a scanned identifier. Only the fields
// the console shows are lifted out; Raw keeps the backend's full object.
type Asset struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	AssetTag string          `json:"assetTag,omitempty"`
	Status   string          `json:"status,omitempty"`
	Location string          `json:"location,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// parseAsset reads the "asset" object of a lookup response. The backend
// has used both "id" and "_id", and both camel and snake case tags.
func parseAsset(body []byte) (*Asset, bool) {
	obj := gjson.GetBytes(body, "asset")
	if !obj.IsObject() {
		return nil, false
	}

	a := &Asset{
		ID:       first(obj, "id", "_id"),
		Name:     first(obj, "name"),
		AssetTag: first(obj, "assetTag", "asset_tag", "tag"),
		Status:   first(obj, "status"),
		Location: first(obj, "location.name", "location"),
		Raw:      json.RawMessage(obj.Raw),
	}
	return a, true
}

func first(obj gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := obj.Get(p); v.Exists() && v.Type != gjson.JSON {
			return v.String()
		}
	}
	return ""
}
