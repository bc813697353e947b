// Package scenario loads YAML descriptions of bases, teams and calls, builds
// a live runtime from them and records what the dispatch chain did.
//
// A scenario stands in for weaver output: bases list their original
// methods, teams list their callin bindings with a small vocabulary of
// advice operations, and calls list join points to trigger on named
// threads. The recorded [Report] holds the trace and per-call results.
package scenario
