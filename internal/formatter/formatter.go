// package formatter renders shelf exports as CSV, Markdown, plain text and JSON.
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

var csvHeaders = []string{"ID", "Title", "Authors", "Publisher", "Published", "ISBN", "Pages", "Rating", "Categories"}

// ExportToCSV converts a ShelfExport to CSV with one row per volume.
func ExportToCSV(export *models.ShelfExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, v := range export.Volumes {
		record := []string{
			v.ID,
			v.Info.Title,
			strings.Join(v.Info.Authors, "; "),
			v.Info.Publisher,
			v.Info.PublishedDate,
			v.ISBN(),
			optionalInt(v.Info.PageCount),
			optionalRating(v.Info.AverageRating),
			strings.Join(v.Info.Categories, "; "),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a ShelfExport to Markdown with an optional cover image.
func ExportToMarkdown(export *models.ShelfExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", shelfTitle(export.Shelf))

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Volumes**: %d\n", len(export.Volumes))
	if !export.ExportedAt.IsZero() {
		fmt.Fprintf(&buf, "**Exported**: %s\n", export.ExportedAt.Format(time.DateOnly))
	}
	buf.WriteString("\n## Volumes\n\n")

	for i, v := range export.Volumes {
		line := fmt.Sprintf("%d. **%s** by %s", i+1, v.Info.Title, v.AuthorList())
		if v.Info.PublishedDate != "" {
			line += fmt.Sprintf(" (%s)", v.Info.PublishedDate)
		}
		if isbn := v.ISBN(); isbn != "" {
			line += fmt.Sprintf(" [ISBN %s]", isbn)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a ShelfExport to plain text.
func ExportToText(export *models.ShelfExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Shelf: %s\n", shelfTitle(export.Shelf))
	fmt.Fprintf(&buf, "Volumes: %d\n\n", len(export.Volumes))

	for i, v := range export.Volumes {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, v.AuthorList(), v.Info.Title)
	}

	return buf.Bytes(), nil
}

// DownloadImage fetches an image and returns the raw bytes.
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// ToMetadataJSON renders the shelf without its volumes.
func ToMetadataJSON(shelf models.Shelf) ([]byte, error) {
	return shared.MarshalJSON(shelf, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	VolumesFile  string
	MetadataFile string
}

// WriteCSVExport writes {base}_volumes.csv and {base}_metadata.json.
//
// base defaults to the shelf key.
func WriteCSVExport(export *models.ShelfExport, base string) (*CSVExportResult, error) {
	if base == "" {
		base = BaseName(export.Shelf)
	}

	data, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	volumesFile := base + "_volumes.csv"
	if err := os.WriteFile(volumesFile, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	meta, err := ToMetadataJSON(export.Shelf)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := base + "_metadata.json"
	if err := os.WriteFile(metadataFile, meta, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{VolumesFile: volumesFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
	Warning    string // Set when the cover could not be saved
}

// WriteMarkdownExport writes {dir}/README.md and, when imageURL is set and
// reachable, {dir}/cover.jpg. dir defaults to the shelf key.
func WriteMarkdownExport(ctx context.Context, export *models.ShelfExport, dir, imageURL string) (*MarkdownExportResult, error) {
	if dir == "" {
		dir = BaseName(export.Shelf)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: dir, Files: []string{}}

	var coverFilename string
	if imageURL != "" {
		if data, err := DownloadImage(ctx, imageURL); err != nil {
			result.Warning = err.Error()
		} else {
			coverPath := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(coverPath, data, 0644); err != nil {
				result.Warning = fmt.Sprintf("failed to save cover image: %v", err)
			} else {
				coverFilename = "cover.jpg"
				result.CoverImage = coverPath
				result.Files = append(result.Files, coverPath)
			}
		}
	}

	md, err := ExportToMarkdown(export, coverFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(mdFile, md, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport writes the plain text rendering, defaulting to {key}_volumes.txt.
func WriteTextExport(export *models.ShelfExport, path string) (string, error) {
	if path == "" {
		path = BaseName(export.Shelf) + "_volumes.txt"
	}

	data, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// WriteJSONExport writes the full export as indented JSON, defaulting to {key}.json.
func WriteJSONExport(export *models.ShelfExport, path string) (string, error) {
	if path == "" {
		path = BaseName(export.Shelf) + ".json"
	}

	data, err := shared.MarshalJSON(export, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// BaseName is the file name stem for a shelf: its key, or shelf_<id> for other shelves.
func BaseName(shelf models.Shelf) string {
	if key := shelf.Key(); key != models.KeyOther {
		return string(key)
	}
	return "shelf_" + strconv.Itoa(int(shelf.ID))
}

func shelfTitle(shelf models.Shelf) string {
	if shelf.Title != "" {
		return shelf.Title
	}
	return shelf.ID.String()
}

func optionalInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func optionalRating(r float64) string {
	if r == 0 {
		return ""
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}
