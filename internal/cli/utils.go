// Package cli formats search results, status and ingestion reports for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/careervec/internal/indexer"
	"github.com/hyperjump/careervec/internal/models"
	"github.com/hyperjump/careervec/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is one line per hit.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat validates a --output value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputJSON, OutputCompact:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or compact)", s)
	}
}

const previewChars = 200

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, hit := range response.Hits {
			fmt.Fprintf(w, "%.4f\t%s\t%s\n", hit.Score, hitSource(hit), oneLine(utils.Truncate(hitText(hit), 80)))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", response.Total, response.Query, response.QueryTime)
	for i, hit := range response.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, hit.Score)
		fmt.Fprintf(w, "Source: %s", hitSource(hit))
		if idx, ok := hit.Metadata[indexer.MetaChunkIndex]; ok {
			fmt.Fprintf(w, " (chunk %v", idx)
			if total, ok := hit.Metadata[indexer.MetaTotalChunks]; ok {
				fmt.Fprintf(w, " of %v", total)
			}
			fmt.Fprint(w, ")")
		}
		fmt.Fprintln(w)
		if text := hitText(hit); text != "" {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(text, previewChars))
		}
		fmt.Fprintln(w)
	}
}

func hitSource(hit *models.SearchHit) string {
	if s, ok := hit.Metadata[indexer.MetaSourceFile].(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// hitText prefers the ingestion preview and falls back to the default "text" record.
func hitText(hit *models.SearchHit) string {
	if s, ok := hit.Metadata[indexer.MetaTextPreview].(string); ok {
		return s
	}
	if s, ok := hit.Metadata["text"].(string); ok {
		return s
	}
	return ""
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WriteStatus writes the store status. Compact is treated as text.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Model:        %s\n", st.Model)
	fmt.Fprintf(w, "Dimension:    %d\n", st.Dimension)
	fmt.Fprintf(w, "Index type:   %s\n", st.IndexType)
	fmt.Fprintf(w, "Vectors:      %d\n", st.Vectors)
	fmt.Fprintf(w, "Documents:    %d\n", st.Documents)
	fmt.Fprintf(w, "Storage dir:  %s\n", st.StorageDir)
	fmt.Fprintf(w, "Disk usage:   %s (index %s, metadata %s, catalog %s)\n",
		FormatBytes(st.DiskBytes), FormatBytes(st.IndexBytes), FormatBytes(st.MetadataBytes), FormatBytes(st.CatalogBytes))
	return nil
}

// WriteReport writes an ingestion report.
func WriteReport(w io.Writer, r *indexer.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "Parsed %d documents: %d indexed, %d unchanged", r.Documents, r.Indexed, r.Skipped)
	if r.Rebuilt {
		fmt.Fprint(w, " (rebuilt)")
	}
	fmt.Fprintf(w, "\nAdded %d chunks, %d vectors total, in %s\n", r.Chunks, r.TotalVectors, r.Duration.Round(time.Millisecond))
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  failed: %s\n", f)
	}
	return nil
}

// WriteProbeResults writes the hits of each probe query, one line per hit.
func WriteProbeResults(w io.Writer, results []indexer.ProbeResult) {
	for _, r := range results {
		fmt.Fprintf(w, "Query: %q\n", r.Query)
		if len(r.Hits) == 0 {
			fmt.Fprintln(w, "  (no results)")
		}
		for _, hit := range r.Hits {
			fmt.Fprintf(w, "  Score: %.3f - %s\n", hit.Score, hitSource(hit))
		}
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
