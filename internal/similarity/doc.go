// Package similarity scores a query against a whole document with a BERT
// pair encoder.
//
// Documents longer than the encoder input are split into windows that fit
// beside the query. Each window is encoded together with the query as
// [CLS] query [SEP] window [SEP]; the hidden states of each span are summed
// into one query vector and one document vector per window. Window vectors
// are then averaged element-wise and the score is the cosine similarity of
// the two averages.
//
// Sum within a window and mean across windows are both part of the score
// definition; changing either changes rankings.
package similarity
