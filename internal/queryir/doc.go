// Package queryir defines filters over the message journal.
//
// A Select names the rows to read with a predicate tree built from Equals,
// In and And nodes. Columns are restricted to the journal's filterable
// columns so a filter never reaches free-form SQL. Backends (see querysql)
// compile a validated Select into a parameterized statement.
//
// Every Select has a total order: sequence number, then entry id. A filter
// over the same journal always returns rows in the same order.
package queryir
