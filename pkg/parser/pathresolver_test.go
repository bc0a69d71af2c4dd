package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestResolve(t *testing.T) {
	root := decode(t, `{
		"props": {
			"pageProps": {
				"advert": {
					"id": 6189423,
					"title": "Mazda CX-5",
					"details": [
						{"label": "Rok produkcji", "value": "2017"},
						{"label": "Przebieg", "value": "150 000 km"},
						{"label": "Wersja", "value": "2.2 SkyPassion"}
					]
				}
			}
		}
	}`)

	tests := []struct {
		name string
		path string
		want interface{}
	}{
		{"nested keys", "props.pageProps.advert.title", "Mazda CX-5"},
		{"numeric leaf", "props.pageProps.advert.id", float64(6189423)},
		{"array filter", "props.pageProps.advert.details[label=Rok produkcji].value", "2017"},
		{"filter with spaces in literal", "props.pageProps.advert.details[label=Przebieg].value", "150 000 km"},
		{"filter literal containing a dot", "props.pageProps.advert.details[value=2.2 SkyPassion].label", "Wersja"},
		{"missing key", "props.pageProps.nothing.here", nil},
		{"filter with no matching element", "props.pageProps.advert.details[label=Moc].value", nil},
		{"filter on non-array", "props.pageProps.advert.title[label=x].value", nil},
		{"key deeper than a scalar", "props.pageProps.advert.title.more", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(root, tt.path))
		})
	}
}

func TestResolveEmptyPathReturnsRoot(t *testing.T) {
	root := decode(t, `{"a": 1}`)
	assert.Equal(t, root, Resolve(root, ""))
}

func TestResolveNumericFilterMatchesWholeFloat(t *testing.T) {
	// JSON numbers decode as float64; a filter literal "123" must still
	// match an element whose property decoded as 123.0.
	root := decode(t, `{"items": [{"id": 122, "name": "a"}, {"id": 123, "name": "b"}]}`)
	assert.Equal(t, "b", Resolve(root, "items[id=123].name"))
}

func TestResolveNilRoot(t *testing.T) {
	assert.Nil(t, Resolve(nil, "a.b"))
	assert.Nil(t, Resolve("scalar", "a.b"))
}
