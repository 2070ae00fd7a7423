package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// chunkSize is the write granularity for streamed downloads.
const chunkSize = 8 * 1024

// Downloader streams signed-URL content to the local output directory.
type Downloader struct {
	httpClient *http.Client
	outputDir  string
	log        zerolog.Logger
}

func NewDownloader(outputDir string, log zerolog.Logger) *Downloader {
	return &Downloader{
		httpClient: &http.Client{},
		outputDir:  outputDir,
		log:        log,
	}
}

// LocalName maps a logical file name to its on-disk basename: the last
// `/`-separated segment. Two remote keys sharing a basename collide and the
// later download overwrites the earlier one.
func LocalName(fileName string) string {
	parts := strings.Split(fileName, "/")
	return parts[len(parts)-1]
}

// Fetch GETs the signed URL and writes the body to the output directory in
// fixed-size chunks, overwriting any existing file of the same name. On a
// non-200 response nothing is written and local state is left untouched.
func (d *Downloader) Fetch(ctx context.Context, signedURL, fileName string) (string, error) {
	d.log.Info().Str("file", fileName).Msg("Downloading file")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.log.Error().
			Str("file", fileName).
			Int("status", resp.StatusCode).
			Msg("Failed to download file")
		return "", fmt.Errorf("failed to download %s: status %d", fileName, resp.StatusCode)
	}

	localPath := filepath.Join(d.outputDir, LocalName(fileName))
	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	if _, err := io.CopyBuffer(f, resp.Body, make([]byte, chunkSize)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", localPath, err)
	}

	d.log.Info().Str("path", localPath).Msg("File downloaded")
	return localPath, nil
}
