// Package appfs exposes static app assets embedded at compile time:
// database migrations, email templates and the common-passwords list.
package appfs

import "embed"

//go:embed assets migrations
var FS embed.FS
