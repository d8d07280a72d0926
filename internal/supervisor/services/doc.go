// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package services adapts long-running components to suture.Service.

Each wrapper translates a component's own lifecycle into suture's
context-aware Serve(ctx) error:

	HTTPServerService  ListenAndServe/Shutdown of *http.Server
	MonitorService     periodic RunOnce of a circulation monitor

Wrappers return ctx.Err() on cancellation and a wrapped error on failure,
which the supervisor answers with a restart under its backoff policy. Each
implements fmt.Stringer so supervisor events name the service.

Example:

	server := &http.Server{Addr: ":8080", Handler: router.Handler()}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	monitor := overdrive.NewCirculationMonitor(api, time.Minute)
	tree.AddVendorService(services.NewMonitorService(monitor, 5*time.Minute))
*/
package services
