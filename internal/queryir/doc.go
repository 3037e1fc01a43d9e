// Package queryir defines FindCriteria, the backend-agnostic representation
// of a compiled SQL-subset query.
//
// FindCriteria sits between the parser and the three backend compilers:
//
//	[query string] → queryparse → [FindCriteria] → querycmd  (legacy compound find)
//	                                             → queryjson (data API query/sort arrays)
//	                                             → querysql  (parameterized SQL)
//
// SHAPE:
//
// A FindCriteria is a single-level OR of AND-groups with at most one
// trailing omit group:
//
//	(g1.c1 AND g1.c2) OR (g2.c1) OMIT (g3.c1 AND g3.c2)
//
// The omit group subtracts its matches from the union of the other groups.
// Nested OR is not representable; the parser rejects it.
//
// OPERATORS:
//
// Equals, Less, LessEq, Greater, GreaterEq compare the whole field value.
// Like passes its operand through untouched: wildcards already in the operand
// are interpreted by the backend, which is authoritative for their meaning.
//
// ROUND TRIP:
//
// String renders a FindCriteria back to the query language. Parsing the
// rendered string yields an equal FindCriteria for every input the grammar
// accepts.
package queryir
