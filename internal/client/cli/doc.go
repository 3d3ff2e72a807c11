// Package cli provides the interactive command-line front end of the
// offline client.
//
// It drives the facade from a REPL: log in, check a rig's DWRs out, edit
// them without a connection, sync and check in. Connectivity is watched in
// the background by netx.Watcher, which the caller wires to
// facade.SetOnline.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
