// Package record defines the envelope records travel in between the query
// compilers, the backend connectors, and the orchestrator.
//
// A Message holds zero or more Records plus four auxiliary sections:
//
//   - MetaFields: per-field descriptors (name, auto-entered, global,
//     repetitions, result type, native type)
//   - Multistatus: one entry per failed item of a bulk batch
//   - Info: ordered key/value operational metadata (found set size,
//     fetch count, skip, script results)
//   - Nav: pagination link descriptors (start, prev, next, end)
//
// Field values are strings. Backends that carry typed values (numbers from
// the data API, integers from SQL) are rendered to their string form by the
// connector before they reach a Record.
//
// Repeating fields use the [n] suffix convention (zero-based). Connectors
// never parse suffixes themselves: ExpandRepetitions and CollapseRepetitions
// are the only places the convention is encoded and decoded.
package record
