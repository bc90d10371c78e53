// Package trec reads and writes the TREC run and qrels formats and
// computes the precision and nDCG cutoffs used to evaluate a run.
//
// A run file has one line per ranked entry:
//
//	<query_id> Q0 <document_id> <rank> <score> <run_tag>
//
// Ranks are dense and 1-based within a query. The run tag is constant
// across the file.
package trec
