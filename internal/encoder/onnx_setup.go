package encoder

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"go.uber.org/zap"
)

// ONNXRuntimeVersion is the ONNX Runtime release whose C API matches the
// onnxruntime_go version in go.mod. Managed installs are kept per version,
// so bumping it never loads a library left by an older release.
const ONNXRuntimeVersion = "1.16.0"

// ErrUnsupportedPlatform indicates no ONNX Runtime release exists for
// the current OS and architecture.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// ortPlatform names an ONNX Runtime release asset and the library in it.
type ortPlatform struct {
	asset   string
	library string
}

var ortPlatforms = map[string]ortPlatform{
	"linux/amd64":  {asset: "linux-x64", library: "libonnxruntime.so"},
	"linux/arm64":  {asset: "linux-aarch64", library: "libonnxruntime.so"},
	"darwin/amd64": {asset: "osx-x86_64", library: "libonnxruntime.dylib"},
	"darwin/arm64": {asset: "osx-arm64", library: "libonnxruntime.dylib"},
}

func lookupPlatform(goos, goarch string) (ortPlatform, error) {
	p, ok := ortPlatforms[goos+"/"+goarch]
	if !ok {
		return ortPlatform{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	return p, nil
}

// releaseBase is where ONNX Runtime release assets are published.
var releaseBase = "https://github.com/microsoft/onnxruntime/releases/download"

// releaseURL is the download for one release asset.
func releaseURL(version, asset string) string {
	return fmt.Sprintf("%[1]s/v%[2]s/onnxruntime-%[3]s-%[2]s.tgz", releaseBase, version, asset)
}

// runtimeDir is the managed install directory for version.
func runtimeDir(version string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "bertrank", "onnxruntime", version)
}

// ResolveONNXLibrary returns the library to load: configured if set, then
// ONNX_PATH, then a managed install of ONNXRuntimeVersion. It returns ""
// when none is present.
func ResolveONNXLibrary(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv("ONNX_PATH"); env != "" {
		return env
	}
	p, err := lookupPlatform(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return ""
	}
	managed := filepath.Join(runtimeDir(ONNXRuntimeVersion), p.library)
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// installRuntime downloads version into its managed directory. The
// library is extracted next to the final directory and renamed into place,
// so an interrupted download never leaves a directory that looks installed.
func installRuntime(ctx context.Context, client *http.Client, version string, p ortPlatform) (string, error) {
	dir := runtimeDir(version)
	if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
		return "", fmt.Errorf("creating runtime directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseURL(version, p.asset), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading ONNX runtime %s: %w", version, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading ONNX runtime %s: status %d", version, resp.StatusCode)
	}

	staging, err := os.MkdirTemp(filepath.Dir(dir), version+".*.partial")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := extractLibrary(resp.Body, staging, fmt.Sprintf("onnxruntime-%s-%s/lib/", p.asset, version), p.library); err != nil {
		return "", fmt.Errorf("extracting ONNX runtime %s: %w", version, err)
	}
	// A concurrent install may have won; its copy is as good as ours.
	if err := os.Rename(staging, dir); err != nil {
		if _, statErr := os.Stat(filepath.Join(dir, p.library)); statErr != nil {
			return "", fmt.Errorf("installing ONNX runtime %s: %w", version, err)
		}
	}
	return filepath.Join(dir, p.library), nil
}

// extractLibrary copies the entries under libPrefix of a release tarball
// into dest: the versioned library and its symlinks. It fails unless
// library itself ends up in dest.
func extractLibrary(r io.Reader, dest, libPrefix, library string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	found := false
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		if !strings.HasPrefix(name, libPrefix) || hdr.Typeflag == tar.TypeDir {
			continue
		}
		base := filepath.Base(name)
		target := filepath.Join(dest, base)

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			// Only links within the lib directory are kept.
			if strings.Contains(hdr.Linkname, "/") {
				continue
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("linking %s: %w", base, err)
			}
		case tar.TypeReg:
			if err := writeLibFile(target, tr); err != nil {
				return err
			}
		default:
			continue
		}
		if base == library {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%s not found in archive", library)
	}
	return nil
}

func writeLibFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// setONNXPathEnv exports ONNX_PATH, which fastembed-go reads when it
// initializes the runtime.
var setONNXPathEnv = func(path string) error {
	return os.Setenv("ONNX_PATH", path)
}

// EnsureONNXRuntime returns a loadable ONNX runtime library. Without a
// configured path or ONNX_PATH it installs ONNXRuntimeVersion into the
// user cache on first use. The result is exported as ONNX_PATH.
func EnsureONNXRuntime(ctx context.Context, configured string, logger *logging.Logger) (string, error) {
	path := ResolveONNXLibrary(configured)
	if path == "" {
		p, err := lookupPlatform(runtime.GOOS, runtime.GOARCH)
		if err != nil {
			return "", err
		}
		logger.Info(ctx, "installing ONNX runtime",
			zap.String("version", ONNXRuntimeVersion),
			zap.String("asset", p.asset),
		)
		path, err = installRuntime(ctx, http.DefaultClient, ONNXRuntimeVersion, p)
		if err != nil {
			return "", fmt.Errorf("%w (run 'bertrank fetch-model' to retry, or set ONNX_PATH)", err)
		}
		logger.Info(ctx, "ONNX runtime installed", zap.String("path", path))
	} else {
		logger.Debug(ctx, "using ONNX runtime", zap.String("path", path))
	}

	if err := setONNXPathEnv(path); err != nil {
		return "", fmt.Errorf("exporting ONNX_PATH: %w", err)
	}
	return path, nil
}
