// Package script loads declarative trace scripts and replays them into a
// VCD writer.
//
// A script lists signals and time-ordered steps:
//
//	name: handshake
//	header:
//	  timescale: 10 ns
//	signals:
//	  - {scope: top, name: req, type: wire, size: 1, init: "0"}
//	steps:
//	  - {at: 10, scope: top, name: req, value: "1"}
//	  - {at: 20, dump: off}
//
// Scripts are written in YAML, or in CUE (checked against an embedded
// #Script schema before decoding).
package script
