package daxko

// FileRecord is one entry from the bulk-data files listing. Records are
// write-once: produced by ListFiles, read by the download steps, never
// mutated or persisted.
type FileRecord struct {
	Name              string `json:"name"`
	LastModifiedAtUtc string `json:"lastModifiedAtUtc"`
}

type listFilesResponse struct {
	Results []FileRecord `json:"results"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type downloadURLResponse struct {
	DownloadURL string `json:"downloadUrl"`
}
