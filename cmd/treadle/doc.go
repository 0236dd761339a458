// Package main hosts the treadle CLI entrypoint and command graph.
//
// The Cobra-based command tree runs pipeline jobs from job files, inspects
// and evicts cache entries, replays job manifests, and scaffolds
// configuration. It centralizes configuration resolution and structured
// logging setup so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
