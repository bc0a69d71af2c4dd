package models

// ParseMethod selects the per-site extraction strategy.
type ParseMethod string

const (
	MethodJSON ParseMethod = "json"
	MethodCSS  ParseMethod = "css"
)

// ParserSchema maps a site key to its extraction config. Loaded from JSON at
// parser construction and treated as immutable afterwards.
type ParserSchema map[string]SiteConfig

// SiteConfig declares how one site's pages are recognized and extracted.
type SiteConfig struct {
	Method ParseMethod `json:"method"`

	// ScriptSelector locates the embedded JSON payload for the json method,
	// e.g. `script#__NEXT_DATA__`. When empty, ScriptRegex is used instead
	// to capture a JS variable assignment.
	ScriptSelector string `json:"scriptSelector,omitempty"`
	// ScriptRegex must contain one capture group holding the JSON literal,
	// either bare or string-quoted with unicode escapes.
	ScriptRegex string `json:"scriptRegex,omitempty"`

	AutoDetection AutoDetection         `json:"autoDetection"`
	PageTypes     map[string]PageConfig `json:"pageTypes"`
}

// AutoDetection holds the two path expressions distinguishing search pages
// from detail pages. A truthy value at DetailIndicator wins detail.
type AutoDetection struct {
	SearchIndicator string `json:"searchIndicator"`
	DetailIndicator string `json:"detailIndicator"`
}

// PageConfig describes extraction for one page type.
//
// For the json method, BasePath locates the page's root data object.
// DataPath and ListPath handle sites that nest result lists inside a
// dynamically-keyed cache object: entries of the object at BasePath are
// scanned for one whose DataPath field, JSON-parsed if a string, holds a
// non-empty array at ListPath. Fields maps canonical field names to path
// expressions which may use the array-filter syntax.
//
// For the css method, Selectors maps canonical field names to CSS selector
// strings; a search page additionally names a listItem selector scoping the
// per-result lookups.
type PageConfig struct {
	BasePath    string            `json:"basePath,omitempty"`
	DataPath    string            `json:"dataPath,omitempty"`
	ListPath    string            `json:"listPath,omitempty"`
	RichResults bool              `json:"richResults,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	Selectors   map[string]string `json:"selectors,omitempty"`
}
