// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

// Command circctl runs circulation maintenance tasks against the configured
// collection without going through the HTTP API.
//
//	circctl config                       print the effective configuration
//	circctl token --subject 42 --role patron
//	circctl sync 42 --pin-stdin          reconcile one patron's bookshelf
//	circctl availability pool 17         refresh a local pool
//	circctl availability title <id>      import or refresh a vendor title
//	circctl monitor                      run one recent-changes scan
//
// Configuration is read the same way the server reads it.
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(newCLI()).Execute(); err != nil {
		os.Exit(1)
	}
}
