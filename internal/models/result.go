package models

// SearchHit is one nearest-neighbor result: a similarity score in (0, 1] and the aligned metadata.
type SearchHit struct {
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// SearchRequest is the body of a semantic search request.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// SearchResponse is the response for a search request.
// Hits are ordered by descending score (ascending distance).
type SearchResponse struct {
	Query     string       `json:"query"`
	K         int          `json:"k"`
	Hits      []*SearchHit `json:"hits"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
}

// AddDocumentsRequest is the body of a raw add-documents request.
// Metadata is optional; when present it must have one record per text.
type AddDocumentsRequest struct {
	Texts    []string   `json:"texts"`
	Metadata []Metadata `json:"metadata,omitempty"`
}

// Status describes the vector store and its on-disk footprint.
type Status struct {
	Model         string `json:"model"`
	Dimension     int    `json:"dimension"`
	IndexType     string `json:"index_type"`
	Vectors       int    `json:"vectors"`
	HasIndex      bool   `json:"has_index"`
	StorageDir    string `json:"storage_dir"`
	Documents     int64  `json:"documents"`
	IndexBytes    int64  `json:"index_bytes"`
	MetadataBytes int64  `json:"metadata_bytes"`
	CatalogBytes  int64  `json:"catalog_bytes"`
	DiskBytes     int64  `json:"disk_usage_bytes"`
}
