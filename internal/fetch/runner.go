package fetch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/firstcredit/daxko-fetcher/internal/daxko"
)

// APIClient captures the partner API operations the run needs.
type APIClient interface {
	Authenticate(ctx context.Context) (string, error)
	ListFiles(ctx context.Context, token, prefix, startAfterFile string) ([]daxko.FileRecord, error)
	GenerateDownloadURL(ctx context.Context, token, fileName string) (string, error)
}

// FileFetcher streams one signed URL to local storage.
type FileFetcher interface {
	Fetch(ctx context.Context, signedURL, fileName string) (string, error)
}

// Archiver mirrors a downloaded report into remote storage. A nil Archiver
// disables mirroring.
type Archiver interface {
	Store(ctx context.Context, localPath, objectKey string) error
}

// Runner drives one batch run: authenticate once, then for each target date
// list, resolve, and fetch, strictly in order on a single goroutine. Only an
// authentication failure (or a recovered panic) ends the run early; every
// per-date and per-file failure is logged and skipped.
type Runner struct {
	api     APIClient
	fetcher FileFetcher
	archive Archiver
	prefix  string
	log     zerolog.Logger
}

func NewRunner(api APIClient, fetcher FileFetcher, archive Archiver, prefix string, log zerolog.Logger) *Runner {
	return &Runner{
		api:     api,
		fetcher: fetcher,
		archive: archive,
		prefix:  prefix,
		log:     log,
	}
}

// cursorFor builds the listing cursor for one target date:
// {prefix}/{prefix}-{date}.
func (r *Runner) cursorFor(date string) string {
	return fmt.Sprintf("%s/%s-%s", r.prefix, r.prefix, date)
}

func (r *Runner) Run(ctx context.Context, dates []string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("error", rec).Msg("An error occurred")
			err = fmt.Errorf("run aborted: %v", rec)
		}
	}()

	r.log.Info().Msg("Starting process...")

	token, err := r.api.Authenticate(ctx)
	if err != nil || token == "" {
		r.log.Error().Msg("Authentication failed. Exiting.")
		if err != nil {
			return err
		}
		return fmt.Errorf("authentication returned an empty token")
	}

	for _, date := range dates {
		startAfterFile := r.cursorFor(date)

		files, err := r.api.ListFiles(ctx, token, r.prefix, startAfterFile)
		if err != nil {
			r.log.Error().
				Str("date", date).
				Err(err).
				Msg("Listing failed, skipping date")
			continue
		}

		for _, file := range files {
			r.log.Info().
				Str("date", date).
				Str("file", file.Name).
				Msg("Processing file")

			downloadURL, err := r.api.GenerateDownloadURL(ctx, token, file.Name)
			if err != nil || downloadURL == "" {
				r.log.Warn().
					Str("file", file.Name).
					Msg("Skipping file due to missing download URL")
				continue
			}

			localPath, err := r.fetcher.Fetch(ctx, downloadURL, file.Name)
			if err != nil {
				continue
			}

			if r.archive != nil {
				if err := r.archive.Store(ctx, localPath, file.Name); err != nil {
					r.log.Error().
						Str("file", file.Name).
						Err(err).
						Msg("Failed to archive file")
				}
			}
		}
	}

	return nil
}
