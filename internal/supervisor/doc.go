// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package supervisor runs the long-lived parts of the server under a suture v4
supervisor tree:

	RootSupervisor ("circulation")
	├── VendorSupervisor ("vendor-layer")
	│   └── MonitorService (if MONITOR_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's backoff. Failures are counted per
layer, so a monitor that keeps failing against the vendor never takes the
HTTP server down with it.

Supervisor events are logged through sutureslog. The slog logger it needs
comes from logging.NewSlogLogger, which writes to the zerolog stream:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: 10 * time.Second,
	})
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	return tree.Serve(ctx)
*/
package supervisor
