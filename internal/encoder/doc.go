// Package encoder runs a BERT-family transformer over token id sequences and
// returns the per-token hidden states.
//
// The package has three parts:
//
//   - Tokenizer turns text into WordPiece ids (WordPieceTokenizer reads a
//     HuggingFace tokenizer.json).
//   - Model runs one forward pass and returns last_hidden_state
//     (ONNXModel drives ONNX Runtime).
//   - Open wires both from configuration, provisioning the ONNX Runtime
//     shared library and, for the fastembed provider, the model bundle.
//
// # Providers
//
// "onnx" loads an exported BERT model and its tokenizer.json from explicit
// paths. "fastembed" downloads a BGE/MiniLM bundle into the cache directory
// through fastembed-go and then loads it the same way.
//
// # CGO
//
// ONNX Runtime is reached through cgo. Binaries built with CGO_ENABLED=0
// compile, but Open returns ErrNotAvailable.
//
// # Concurrency
//
// A Model is read-only after construction and safe for concurrent Forward
// calls. WordPieceTokenizer serializes calls internally.
package encoder
