package discovery

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"html"
	"strings"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Attribute is an ERC-721 metadata trait.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the off-chain token metadata document referenced by a mint.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

var typePalette = map[domain.AssetType][2]string{
	domain.AssetTypeTreasury:    {"#0b3d91", "#4f83cc"},
	domain.AssetTypeRealEstate:  {"#1b5e20", "#66bb6a"},
	domain.AssetTypeArt:         {"#6a1b9a", "#ce93d8"},
	domain.AssetTypeLuxury:      {"#8d6e00", "#ffd54f"},
	domain.AssetTypePrivateCred: {"#b71c1c", "#ef9a9a"},
}

var typeLabels = map[domain.AssetType]string{
	domain.AssetTypeTreasury:    "Tokenized Treasury",
	domain.AssetTypeRealEstate:  "Real Estate",
	domain.AssetTypeArt:         "Art",
	domain.AssetTypeLuxury:      "Luxury",
	domain.AssetTypePrivateCred: "Private Credit",
}

// MetadataDocument builds the metadata for an asset. The output depends only
// on name, symbol and type.
func MetadataDocument(name, symbol string, t domain.AssetType) Metadata {
	label, ok := typeLabels[t]
	if !ok {
		label = typeLabels[domain.AssetTypeTreasury]
		t = domain.AssetTypeTreasury
	}
	return Metadata{
		Name:        fmt.Sprintf("%s (%s)", name, symbol),
		Description: fmt.Sprintf("Discovery card for %s, a %s real-world asset.", name, strings.ToLower(label)),
		Image:       "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(placeholderSVG(name, symbol, t, label))),
		Attributes: []Attribute{
			{TraitType: "Asset Type", Value: label},
			{TraitType: "Symbol", Value: symbol},
		},
	}
}

// placeholderSVG renders a card whose pattern is seeded from the name so
// different assets of one type still look different.
func placeholderSVG(name, symbol string, t domain.AssetType, label string) string {
	colors := typePalette[t]
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + "|" + symbol))
	seed := h.Sum32()
	cx, cy, r := 60+seed%280, 80+(seed>>8)%200, 30+(seed>>16)%70

	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="400" height="400" viewBox="0 0 400 400">`)
	fmt.Fprintf(&b, `<defs><linearGradient id="g" x1="0" y1="0" x2="1" y2="1"><stop offset="0" stop-color="%s"/><stop offset="1" stop-color="%s"/></linearGradient></defs>`, colors[0], colors[1])
	b.WriteString(`<rect width="400" height="400" rx="24" fill="url(#g)"/>`)
	fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" fill="#ffffff" fill-opacity="0.15"/>`, cx, cy, r)
	fmt.Fprintf(&b, `<text x="200" y="210" font-family="monospace" font-size="48" fill="#ffffff" text-anchor="middle">%s</text>`, html.EscapeString(symbol))
	fmt.Fprintf(&b, `<text x="200" y="360" font-family="sans-serif" font-size="18" fill="#ffffff" text-anchor="middle">%s</text>`, html.EscapeString(label))
	b.WriteString(`</svg>`)
	return b.String()
}

// JSON encodes the document.
func (m Metadata) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// TokenURI returns the document as a base64 JSON data URI.
func TokenURI(m Metadata) (string, error) {
	data, err := m.JSON()
	if err != nil {
		return "", fmt.Errorf("discovery: encode metadata: %w", err)
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(data), nil
}
