// Package loom is a compile-time dependency-injection compiler for Go.
//
// Loom reads annotated source, resolves every component's binding graph ahead
// of time and generates plain constructor-calling code, so wiring mistakes
// surface as build diagnostics instead of runtime panics. There is no
// reflection and no container: the generated output is ordinary Go an
// application could have written by hand.
//
// The pipeline runs in stages, one package each:
//
//   - loader: scans Go packages for loom directives into the element model
//   - model: modules, components and injectable types for one round
//   - key / binding: binding-key identity and the binding taxonomy
//   - graph: per-component binding-graph resolution
//   - validate: duplicate, missing, cycle, scope and wiring checks
//   - plan: sharding and per-binding generation strategies
//   - emit: rendered Go source
//   - compile: the round driver tying the stages together
//
// cmd/loom is the command-line entry point.
package loom
