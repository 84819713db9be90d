package inquiry

import _ "embed"

// Version is the release version of the module, set from the VERSION file.
//
//go:embed VERSION
var Version string
