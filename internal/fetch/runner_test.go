package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstcredit/daxko-fetcher/internal/daxko"
)

type fakeAPI struct {
	token        string
	authErr      error
	listCalls    []string
	listFiles    map[string][]daxko.FileRecord
	listErr      map[string]error
	resolveCalls []string
	resolveErr   map[string]error
}

func (f *fakeAPI) Authenticate(ctx context.Context) (string, error) {
	return f.token, f.authErr
}

func (f *fakeAPI) ListFiles(ctx context.Context, token, prefix, startAfterFile string) ([]daxko.FileRecord, error) {
	f.listCalls = append(f.listCalls, startAfterFile)
	if err := f.listErr[startAfterFile]; err != nil {
		return nil, err
	}
	return f.listFiles[startAfterFile], nil
}

func (f *fakeAPI) GenerateDownloadURL(ctx context.Context, token, fileName string) (string, error) {
	f.resolveCalls = append(f.resolveCalls, fileName)
	if err := f.resolveErr[fileName]; err != nil {
		return "", err
	}
	return "https://signed.example.com/" + LocalName(fileName), nil
}

type fakeFetcher struct {
	calls []string
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, signedURL, fileName string) (string, error) {
	f.calls = append(f.calls, fileName)
	if f.err != nil {
		return "", f.err
	}
	return LocalName(fileName), nil
}

type fakeArchiver struct {
	keys []string
}

func (f *fakeArchiver) Store(ctx context.Context, localPath, objectKey string) error {
	f.keys = append(f.keys, objectKey)
	return nil
}

func TestRun_AuthFailureHaltsBeforeListing(t *testing.T) {
	api := &fakeAPI{authErr: fmt.Errorf("authentication failed: invalid_client")}
	fetcher := &fakeFetcher{}
	r := NewRunner(api, fetcher, nil, "FirstCreditPaymentByItem", zerolog.Nop())

	err := r.Run(context.Background(), []string{"08-10-2024"})
	assert.Error(t, err)
	assert.Empty(t, api.listCalls)
	assert.Empty(t, fetcher.calls)
}

func TestRun_EmptyTokenHaltsBeforeListing(t *testing.T) {
	api := &fakeAPI{token: ""}
	fetcher := &fakeFetcher{}
	r := NewRunner(api, fetcher, nil, "FirstCreditPaymentByItem", zerolog.Nop())

	err := r.Run(context.Background(), []string{"08-10-2024"})
	assert.Error(t, err)
	assert.Empty(t, api.listCalls)
}

func TestRun_CursorPerDate(t *testing.T) {
	api := &fakeAPI{token: "tok"}
	r := NewRunner(api, &fakeFetcher{}, nil, "FirstCreditPaymentByItem", zerolog.Nop())

	err := r.Run(context.Background(), []string{"08-10-2024", "08-11-2024", "08-12-2024"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FirstCreditPaymentByItem/FirstCreditPaymentByItem-08-10-2024",
		"FirstCreditPaymentByItem/FirstCreditPaymentByItem-08-11-2024",
		"FirstCreditPaymentByItem/FirstCreditPaymentByItem-08-12-2024",
	}, api.listCalls)
}

func TestRun_ListingFailureSkipsDateOnly(t *testing.T) {
	failing := "FirstCreditPaymentByItem/FirstCreditPaymentByItem-08-10-2024"
	ok := "FirstCreditPaymentByItem/FirstCreditPaymentByItem-08-11-2024"
	api := &fakeAPI{
		token:   "tok",
		listErr: map[string]error{failing: fmt.Errorf("failed to list files")},
		listFiles: map[string][]daxko.FileRecord{
			ok: {{Name: "FirstCreditPaymentByItem/c.csv"}},
		},
	}
	fetcher := &fakeFetcher{}
	r := NewRunner(api, fetcher, nil, "FirstCreditPaymentByItem", zerolog.Nop())

	err := r.Run(context.Background(), []string{"08-10-2024", "08-11-2024"})
	require.NoError(t, err)
	assert.Equal(t, []string{failing, ok}, api.listCalls)
	assert.Equal(t, []string{"FirstCreditPaymentByItem/c.csv"}, fetcher.calls)
}

func TestRun_ResolutionFailureSkipsFileOnly(t *testing.T) {
	cursor := "FirstCreditPaymentByItem/FirstCreditPaymentByItem-08-10-2024"
	api := &fakeAPI{
		token: "tok",
		listFiles: map[string][]daxko.FileRecord{
			cursor: {
				{Name: "FirstCreditPaymentByItem/a.csv"},
				{Name: "FirstCreditPaymentByItem/b.csv"},
			},
		},
		resolveErr: map[string]error{
			"FirstCreditPaymentByItem/a.csv": fmt.Errorf("failed to generate download URL"),
		},
	}
	fetcher := &fakeFetcher{}
	r := NewRunner(api, fetcher, nil, "FirstCreditPaymentByItem", zerolog.Nop())

	err := r.Run(context.Background(), []string{"08-10-2024"})
	require.NoError(t, err)

	// Both files are resolved, only the second one reaches the fetcher.
	assert.Equal(t, []string{
		"FirstCreditPaymentByItem/a.csv",
		"FirstCreditPaymentByItem/b.csv",
	}, api.resolveCalls)
	assert.Equal(t, []string{"FirstCreditPaymentByItem/b.csv"}, fetcher.calls)
}

func TestRun_FetchFailureContinuesAndSkipsArchive(t *testing.T) {
	cursor := "FirstCreditPaymentByItem/FirstCreditPaymentByItem-08-10-2024"
	api := &fakeAPI{
		token: "tok",
		listFiles: map[string][]daxko.FileRecord{
			cursor: {{Name: "FirstCreditPaymentByItem/a.csv"}},
		},
	}
	fetcher := &fakeFetcher{err: fmt.Errorf("failed to download")}
	arch := &fakeArchiver{}
	r := NewRunner(api, fetcher, arch, "FirstCreditPaymentByItem", zerolog.Nop())

	err := r.Run(context.Background(), []string{"08-10-2024"})
	require.NoError(t, err)
	assert.Empty(t, arch.keys)
}

func TestRun_ArchivesEachSuccessfulDownload(t *testing.T) {
	cursor := "FirstCreditPaymentByItem/FirstCreditPaymentByItem-08-10-2024"
	api := &fakeAPI{
		token: "tok",
		listFiles: map[string][]daxko.FileRecord{
			cursor: {
				{Name: "FirstCreditPaymentByItem/a.csv"},
				{Name: "FirstCreditPaymentByItem/b.csv"},
			},
		},
	}
	arch := &fakeArchiver{}
	r := NewRunner(api, &fakeFetcher{}, arch, "FirstCreditPaymentByItem", zerolog.Nop())

	err := r.Run(context.Background(), []string{"08-10-2024"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FirstCreditPaymentByItem/a.csv",
		"FirstCreditPaymentByItem/b.csv",
	}, arch.keys)
}

// End to end: three dates against a mock partner API, two files on the first
// date and none after, exactly two downloads.
func TestRun_EndToEnd(t *testing.T) {
	const prefix = "FirstCreditPaymentByItem"
	firstCursor := prefix + "/" + prefix + "-08-10-2024"

	var downloads int
	var srv *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-e2e"})
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		results := []daxko.FileRecord{}
		if r.URL.Query().Get("startAfterFile") == firstCursor {
			results = []daxko.FileRecord{
				{Name: prefix + "/" + prefix + "-08-10-2024-01.csv", LastModifiedAtUtc: "2024-08-10T06:00:00Z"},
				{Name: prefix + "/" + prefix + "-08-10-2024-02.csv", LastModifiedAtUtc: "2024-08-10T07:00:00Z"},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("fileName")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"downloadUrl": srv.URL + "/signed/" + LocalName(name),
		})
	})
	mux.HandleFunc("/signed/", func(w http.ResponseWriter, r *http.Request) {
		downloads++
		_, _ = w.Write([]byte("csv-content for " + r.URL.Path))
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	client := daxko.NewClient(daxko.ClientConfig{
		AuthURL:      srv.URL + "/oauth/token",
		ClientID:     "id",
		ClientSecret: "secret",
		Scope:        "bulk-data",
		BaseURL:      srv.URL,
	}, zerolog.Nop())

	r := NewRunner(client, NewDownloader(dir, zerolog.Nop()), nil, prefix, zerolog.Nop())
	err := r.Run(context.Background(), []string{"08-10-2024", "08-11-2024", "08-12-2024"})
	require.NoError(t, err)

	assert.Equal(t, 2, downloads)
	for _, name := range []string{prefix + "-08-10-2024-01.csv", prefix + "-08-10-2024-02.csv"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, statErr)
	}
}
