// Package download transfers remote tracks into the local downloads directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// HTTPDownloader implements ports.Downloader with a plain HTTP GET.
// Bodies are written to a temporary ".part" file and moved into place on success,
// so the downloads directory never holds a truncated track under its final name.
type HTTPDownloader struct {
	dir    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPDownloader creates a downloader writing into dir.
// A nil client uses http.DefaultClient.
func NewHTTPDownloader(dir string, client *http.Client, logger *slog.Logger) *HTTPDownloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDownloader{dir: dir, client: client, logger: logger}
}

// Download fetches remoteURI into <dir>/<fileName> and returns the absolute path.
// When another file already owns that name a short unique suffix is added.
func (d *HTTPDownloader) Download(ctx context.Context, fileName, remoteURI string, headers map[string]string) (string, error) {
	if fileName == "" || fileName == "." || fileName == ".." || strings.ContainsAny(fileName, `/\`) {
		return "", domain.ErrInvalidFileName
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", domain.NewNetworkError("download", remoteURI, 0, fmt.Errorf("create downloads dir: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURI, nil)
	if err != nil {
		return "", domain.NewNetworkError("download", remoteURI, 0, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", domain.NewNetworkError("download", remoteURI, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", domain.NewNetworkError("download", remoteURI, resp.StatusCode, nil)
	}

	partial := filepath.Join(d.dir, fileName+".part-"+uuid.NewString()[:8])
	size, err := writeFile(partial, resp.Body)
	if err != nil {
		os.Remove(partial)
		return "", domain.NewNetworkError("download", remoteURI, 0, err)
	}

	final, err := d.commit(partial, fileName)
	if err != nil {
		os.Remove(partial)
		return "", domain.NewNetworkError("download", remoteURI, 0, err)
	}

	abs, err := filepath.Abs(final)
	if err != nil {
		abs = final
	}

	if d.logger != nil {
		d.logger.Info("track downloaded",
			slog.String("uri", remoteURI),
			slog.String("path", abs),
			slog.String("size", humanize.Bytes(uint64(size))))
	}
	return abs, nil
}

func writeFile(name string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		return n, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

// commit links the partial file under its final name without clobbering an existing file.
func (d *HTTPDownloader) commit(partial, fileName string) (string, error) {
	final := filepath.Join(d.dir, fileName)
	err := os.Link(partial, final)
	if errors.Is(err, fs.ErrExist) {
		ext := filepath.Ext(fileName)
		final = filepath.Join(d.dir, strings.TrimSuffix(fileName, ext)+"-"+uuid.NewString()[:8]+ext)
		err = os.Link(partial, final)
	}
	if err != nil {
		// Filesystems without hard links
		if rerr := os.Rename(partial, final); rerr != nil {
			return "", rerr
		}
		return final, nil
	}
	return final, os.Remove(partial)
}

var _ ports.Downloader = (*HTTPDownloader)(nil)
