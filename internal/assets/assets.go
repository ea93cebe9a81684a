package assets

import _ "embed"

// ModelsData is the embedded model catalog. Enablement state lives in
// the database; this file only describes what exists.
//
//go:embed models.json
var ModelsData []byte
