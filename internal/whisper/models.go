package whisper

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattjoyce/dictation/internal/log"
	"github.com/zeebo/blake3"
)

// ErrUnknownModel is returned for names outside the catalogue.
var ErrUnknownModel = errors.New("unknown whisper model")

// Catalogue lists the downloadable models in display order.
var Catalogue = []string{
	"tiny.en", "tiny",
	"base.en", "base",
	"small.en", "small",
	"medium.en", "medium",
	"large",
}

// remoteNames maps catalogue names whose upstream file differs from the local one.
var remoteNames = map[string]string{
	"large": "large-v3",
}

// Known reports whether name is in the catalogue.
func Known(name string) bool {
	return slices.Contains(Catalogue, name)
}

// ValidName reports whether name can be used as a model file name. Models
// outside the catalogue are allowed when installed by hand, but a name must
// never resolve outside the models directory.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00") && !strings.Contains(name, "..")
}

// ModelInfo describes one catalogue entry and its local state.
type ModelInfo struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
}

// DownloadResult describes a completed download.
type DownloadResult struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
	Digest  string `json:"blake3,omitempty"`
	Existed bool   `json:"existed"`
}

// ProgressFunc receives download progress. total is -1 when unknown.
type ProgressFunc func(written, total int64)

// Models manages ggml model files in a directory.
type Models struct {
	dir     string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewModels returns a manager for models stored in dir and fetched from baseURL.
func NewModels(dir, baseURL string) *Models {
	return &Models{
		dir:     dir,
		baseURL: baseURL,
		client:  http.DefaultClient,
		logger:  log.WithComponent("models"),
	}
}

// Dir returns the models directory.
func (m *Models) Dir() string { return m.dir }

// Path returns where name is (or would be) stored.
func (m *Models) Path(name string) string {
	return filepath.Join(m.dir, "ggml-"+name+".bin")
}

// Exists reports whether name is installed.
func (m *Models) Exists(name string) bool {
	if !ValidName(name) {
		return false
	}
	info, err := os.Stat(m.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// List returns every catalogue model with its install state.
func (m *Models) List() []ModelInfo {
	out := make([]ModelInfo, 0, len(Catalogue))
	for _, name := range Catalogue {
		mi := ModelInfo{Name: name, Path: m.Path(name)}
		if info, err := os.Stat(mi.Path); err == nil && info.Mode().IsRegular() {
			mi.Installed = true
			mi.Size = info.Size()
		}
		out = append(out, mi)
	}
	return out
}

// URL returns the upstream location of name.
func (m *Models) URL(name string) string {
	remote := name
	if r, ok := remoteNames[name]; ok {
		remote = r
	}
	return m.baseURL + "/ggml-" + remote + ".bin"
}

// Download fetches name into the models directory. The file is written to a
// .partial sibling and renamed into place only once complete. An installed
// model is left untouched.
func (m *Models) Download(ctx context.Context, name string, progress ProgressFunc) (DownloadResult, error) {
	if !Known(name) {
		return DownloadResult{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownModel, name, Catalogue)
	}

	dst := m.Path(name)
	if info, err := os.Stat(dst); err == nil {
		return DownloadResult{Name: name, Path: dst, Bytes: info.Size(), Existed: true}, nil
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return DownloadResult{}, fmt.Errorf("create models directory: %w", err)
	}

	url := m.URL(name)
	logger := m.logger.With("model", name, "url", url)
	logger.Info("downloading model")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DownloadResult{}, fmt.Errorf("download %s: unexpected status %s", name, resp.Status)
	}

	tmp := dst + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("create %s: %w", tmp, err)
	}

	pw := &progressWriter{
		ctx:      ctx,
		total:    resp.ContentLength,
		hash:     blake3.New(),
		progress: progress,
	}
	written, err := io.Copy(io.MultiWriter(out, pw), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return DownloadResult{}, fmt.Errorf("write %s: %w", name, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(tmp)
		return DownloadResult{}, fmt.Errorf("download %s: short read (%d of %d bytes)", name, written, resp.ContentLength)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return DownloadResult{}, fmt.Errorf("install %s: %w", name, err)
	}

	res := DownloadResult{
		Name:   name,
		Path:   dst,
		Bytes:  written,
		Digest: hex.EncodeToString(pw.hash.Sum(nil)),
	}
	logger.Info("model downloaded", "bytes", written, "blake3", res.Digest)
	return res, nil
}

// Delete removes an installed model. It reports false when nothing was installed.
func (m *Models) Delete(name string) (bool, error) {
	if !Known(name) {
		return false, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	if err := os.Remove(m.Path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete model %s: %w", name, err)
	}
	m.logger.Info("model deleted", "model", name)
	return true, nil
}

type progressWriter struct {
	ctx      context.Context
	total    int64
	written  int64
	hash     *blake3.Hasher
	progress ProgressFunc
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	select {
	case <-pw.ctx.Done():
		return 0, pw.ctx.Err()
	default:
	}

	n, err := pw.hash.Write(p)
	if err != nil {
		return n, err
	}
	pw.written += int64(n)
	if pw.progress != nil {
		pw.progress(pw.written, pw.total)
	}
	return n, nil
}
