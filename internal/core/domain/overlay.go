package domain

import "sort"

// OverlayCatalog maps an overlay key to the location of its image.
type OverlayCatalog map[string]string

// DefaultOverlayCatalog returns the illustrations bundled with the studio.
func DefaultOverlayCatalog() OverlayCatalog {
	return OverlayCatalog{
		"aqua": "assets/aqua.png",
		"rem":  "assets/rem.png",
		"dio":  "assets/dio.png",
	}
}

// Keys returns the catalog keys in a stable order.
func (c OverlayCatalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c OverlayCatalog) Resolve(key string) (string, bool) {
	uri, ok := c[key]
	return uri, ok && uri != ""
}
