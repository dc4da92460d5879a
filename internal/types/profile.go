package types

// ProfileInfo is the recognised-keys subset of a kind-0 event's JSON content
// (spec.md §3: "recognised keys {name, display_name, about, picture, nip05,
// website, lud16}"). Unrecognised keys in the source JSON are ignored.
type ProfileInfo struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	About       string `json:"about,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Nip05       string `json:"nip05,omitempty"`
	Website     string `json:"website,omitempty"`
	Lud16       string `json:"lud16,omitempty"`
}
