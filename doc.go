// Package luna is a small lua 5.1 style interpreter. Source is parsed into a
// syntax tree, annotated with scoping information, lowered into register
// bytecode and run on a register virtual machine with a generational
// collector.
//
// The pipeline lives under src/: parse, semantic and codegen turn source into
// a prototype, and runtime executes it. This package wires them together so
// that a state can compile the chunks it is given by load, dofile and the
// REPL.
package luna
