package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-relay/internal/job"
)

// DownloaderOptions configures a Downloader
type DownloaderOptions struct {
	BaseDir  string        // where temporary files are written
	BaseURL  string        // prefix for identifiers that are not URLs
	Timeout  time.Duration // whole request timeout
	MaxBytes int64         // size cap, <= 0 for none
}

// Downloader fetches content over HTTP into tmp_<id>.<ext> files under the
// base directory, reads them back and removes them. The extension comes from
// the URL, or from the content when the URL has none.
type Downloader struct {
	baseDir  string
	baseURL  string
	maxBytes int64
	client   *http.Client
	logger   *zap.Logger
}

// NewDownloader creates the base directory if needed
func NewDownloader(opts DownloaderOptions, logger *zap.Logger) (*Downloader, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.BaseDir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		baseDir:  opts.BaseDir,
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		maxBytes: opts.MaxBytes,
		client:   &http.Client{Timeout: opts.Timeout},
		logger:   logger.With(zap.String("component", "downloader")),
	}, nil
}

// Fetch downloads fileID, which is either a URL or a path under the base URL
func (d *Downloader) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	target := fileID
	if !IsURL(fileID) {
		if d.baseURL == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		target = d.baseURL + "/" + strings.TrimPrefix(fileID, "/")
	}

	short := job.ShortID(fileID)
	log := d.logger.With(zap.String("file", short))

	tmp := d.tempPath(target)
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove temporary file", zap.String("path", tmp), zap.Error(err))
		}
	}()

	log.Info("downloading file", zap.String("path", tmp))
	if err := d.download(ctx, target, tmp); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", short, err)
	}

	log.Debug("reading downloaded file")
	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(tmp) == "" {
		tmp = d.nameByContent(tmp, data, log)
	}
	return data, nil
}

// nameByContent renames a download that had no extension after its sniffed
// type and returns the path the file now has
func (d *Downloader) nameByContent(tmp string, data []byte, log *zap.Logger) string {
	named := tmp + "." + sniffExt(data)
	if err := os.Rename(tmp, named); err != nil {
		log.Warn("failed to name downloaded file", zap.String("path", tmp), zap.Error(err))
		return tmp
	}
	log.Debug("named downloaded file by content", zap.String("path", named))
	return named
}

func (d *Downloader) download(ctx context.Context, target, dst string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	response, err := d.client.Do(request)
	if err != nil {
		return err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("download status %d", response.StatusCode)
	}

	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	body := io.Reader(response.Body)
	if d.maxBytes > 0 {
		body = io.LimitReader(response.Body, d.maxBytes+1)
	}
	n, err := io.Copy(file, body)
	if err != nil {
		return err
	}
	if d.maxBytes > 0 && n > d.maxBytes {
		return fmt.Errorf("file exceeds %d bytes", d.maxBytes)
	}
	return nil
}

// tempPath returns a fresh file name for one download of target. A target
// without an extension gets a bare tmp_<id> name until its content is known.
func (d *Downloader) tempPath(target string) string {
	name := "tmp_" + uuid.NewString()
	if u, err := url.Parse(target); err == nil {
		if e := strings.TrimPrefix(path.Ext(u.Path), "."); e != "" && !strings.ContainsAny(e, `/\`) {
			name += "." + strings.ToLower(e)
		}
	}
	return filepath.Join(d.baseDir, name)
}
