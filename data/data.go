// Package data embeds the default item catalog.
package data

import _ "embed"

//go:embed items.yaml
var ItemsYAML []byte
