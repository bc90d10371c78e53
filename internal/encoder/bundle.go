package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Bundle is a model directory on disk: an ONNX graph and its tokenizer.
type Bundle struct {
	Dir       string
	Model     string // .onnx file
	Tokenizer string // tokenizer.json
	Dimension int    // hidden size, 0 when unknown
}

// knownModel describes a fastembed model name.
type knownModel struct {
	name      string // fastembed cache directory name
	dimension int
}

// knownModels maps accepted model names to their fastembed identity.
var knownModels = map[string]knownModel{
	"BAAI/bge-small-en-v1.5":                 {"fast-bge-small-en-v1.5", 384},
	"BAAI/bge-small-en":                      {"fast-bge-small-en", 384},
	"BAAI/bge-base-en-v1.5":                  {"fast-bge-base-en-v1.5", 768},
	"BAAI/bge-base-en":                       {"fast-bge-base-en", 768},
	"sentence-transformers/all-MiniLM-L6-v2": {"fast-all-MiniLM-L6-v2", 384},
	"fast-bge-small-en-v1.5":                 {"fast-bge-small-en-v1.5", 384},
	"fast-bge-small-en":                      {"fast-bge-small-en", 384},
	"fast-bge-base-en-v1.5":                  {"fast-bge-base-en-v1.5", 768},
	"fast-bge-base-en":                       {"fast-bge-base-en", 768},
	"fast-all-MiniLM-L6-v2":                  {"fast-all-MiniLM-L6-v2", 384},
}

// lookupModel resolves a friendly or fastembed model name.
func lookupModel(name string) (knownModel, error) {
	m, ok := knownModels[name]
	if !ok {
		return knownModel{}, fmt.Errorf("%w: unsupported model %q (supported: %v)", ErrInvalidConfig, name, SupportedModels())
	}
	return m, nil
}

// SupportedModels lists the accepted fastembed model names.
func SupportedModels() []string {
	names := make([]string, 0, len(knownModels))
	for name := range knownModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// locateBundle finds the ONNX graph and tokenizer in dir. The optimized
// graph is preferred over model.onnx; otherwise the first *.onnx wins.
func locateBundle(dir string) (Bundle, error) {
	b := Bundle{Dir: dir}

	for _, name := range []string{"model_optimized.onnx", "model.onnx"} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			b.Model = p
			break
		}
	}
	if b.Model == "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.onnx"))
		if err != nil {
			return Bundle{}, fmt.Errorf("searching %s: %w", dir, err)
		}
		sort.Strings(matches)
		if len(matches) == 0 {
			return Bundle{}, fmt.Errorf("%w: no .onnx file in %s", ErrInvalidConfig, dir)
		}
		b.Model = matches[0]
	}

	tok := filepath.Join(dir, "tokenizer.json")
	if !fileExists(tok) {
		return Bundle{}, fmt.Errorf("%w: no tokenizer.json in %s", ErrInvalidConfig, dir)
	}
	b.Tokenizer = tok

	return b, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
