// Package scripts embeds the Risor provider scripts shipped with polyinject.
// Each providers/<name>.risor is resolvable as provider <name>; an optional
// providers/<name>.yaml next to it is the script's compat table.
package scripts

import "embed"

//go:embed providers/*.risor providers/*.yaml
var FS embed.FS
