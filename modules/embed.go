// Package modules embeds the classifier modules shipped with tkldet. They
// are used when no modules directory exists on the build host.
package modules

import "embed"

// FS holds the module files at its root and the scripts they reference
// below scripts/.
//
//go:embed *.risor scripts/*.risor
var FS embed.FS
