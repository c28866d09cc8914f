// Package vcd writes Value Change Dump files.
//
// A Writer is driven in two phases:
//
// Registration:
// Variables are declared with Register, each inside a scope named by a
// separator-delimited path ("top.cpu.alu"). Every variable gets an initial
// value at the writer's starting timestamp.
//
// Dumping:
// The first Change past the starting timestamp writes the header, the nested
// declarations and a $dumpvars snapshot of every initial value. From then on
// each Change writes a record only when the value differs from the last one
// recorded for that variable.
//
// Values are validated per type:
//   - scalars (events, 1-bit integer/realtime): one of 0 1 x z
//   - vectors: a bit string no longer than the width, right-aligned and
//     zero-filled on the left
//   - reals: any float, written with 16 significant digits
//   - strings: text without spaces
//
// Timestamps are global and never go backwards. Validation failures are
// reported before anything is written for the call.
package vcd
