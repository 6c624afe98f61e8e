package appfs

import "embed"

// FS holds every file the binaries need at runtime.
//
//go:embed migrations/*.sql templates/email/* content/*.yaml assets/* catalog.yaml
var FS embed.FS
