package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/sitewatch/internal/model"
)

// csvHeader is the column order of exported snapshots.
var csvHeader = []string{"url", "parent_url", "title", "description", "heading", "depth", "child_count", "status_code"}

// ErrUnsupportedFormat is returned for snapshot files that are neither CSV nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported snapshot format: use .csv or .json")

// pageJSON is the exported form of a PageRecord. A missing parent is null.
type pageJSON struct {
	URL         string  `json:"url"`
	ParentURL   *string `json:"parent_url"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Heading     string  `json:"heading"`
	Depth       int     `json:"depth"`
	ChildCount  int     `json:"child_count"`
	StatusCode  int     `json:"status_code"`
}

// WriteSnapshotCSV writes one row per page, in crawl order.
func WriteSnapshotCSV(w io.Writer, s *model.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range s.Pages {
		record := []string{
			p.URL,
			p.ParentURL,
			p.Title,
			p.Description,
			p.Heading,
			strconv.Itoa(p.Depth),
			strconv.Itoa(p.ChildCount),
			strconv.Itoa(p.StatusCode),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSnapshotCSV reads pages written by WriteSnapshotCSV. Columns are
// matched by header name; url is required, missing columns stay empty.
func ReadSnapshotCSV(r io.Reader) (*model.Snapshot, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := col["url"]; !ok {
		return nil, errors.New("csv has no url column")
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	number := func(record []string, name string, line int) (int, error) {
		v := strings.TrimSpace(field(record, name))
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("line %d: invalid %s %q", line, name, v)
		}
		return n, nil
	}

	var pages []model.PageRecord
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		p := model.PageRecord{
			URL:         field(record, "url"),
			ParentURL:   field(record, "parent_url"),
			Title:       field(record, "title"),
			Description: field(record, "description"),
			Heading:     field(record, "heading"),
		}
		if p.Depth, err = number(record, "depth", line); err != nil {
			return nil, err
		}
		if p.ChildCount, err = number(record, "child_count", line); err != nil {
			return nil, err
		}
		if p.StatusCode, err = number(record, "status_code", line); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return snapshotOf(pages), nil
}

// WriteSnapshotJSON writes the pages as an indented JSON array.
func WriteSnapshotJSON(w io.Writer, s *model.Snapshot) error {
	out := make([]pageJSON, 0, len(s.Pages))
	for _, p := range s.Pages {
		pj := pageJSON{
			URL:         p.URL,
			Title:       p.Title,
			Description: p.Description,
			Heading:     p.Heading,
			Depth:       p.Depth,
			ChildCount:  p.ChildCount,
			StatusCode:  p.StatusCode,
		}
		if p.HasParent() {
			parent := p.ParentURL
			pj.ParentURL = &parent
		}
		out = append(out, pj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ReadSnapshotJSON reads pages written by WriteSnapshotJSON.
func ReadSnapshotJSON(r io.Reader) (*model.Snapshot, error) {
	var in []pageJSON
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	pages := make([]model.PageRecord, 0, len(in))
	for _, pj := range in {
		p := model.PageRecord{
			URL:         pj.URL,
			Title:       pj.Title,
			Description: pj.Description,
			Heading:     pj.Heading,
			Depth:       pj.Depth,
			ChildCount:  pj.ChildCount,
			StatusCode:  pj.StatusCode,
		}
		if pj.ParentURL != nil {
			p.ParentURL = *pj.ParentURL
		}
		pages = append(pages, p)
	}
	return snapshotOf(pages), nil
}

// snapshotOf builds a snapshot whose base URL is the first root page.
func snapshotOf(pages []model.PageRecord) *model.Snapshot {
	base := ""
	for _, p := range pages {
		if !p.HasParent() {
			base = p.URL
			break
		}
	}
	if base == "" && len(pages) > 0 {
		base = pages[0].URL
	}

	s := model.NewSnapshot(base)
	for _, p := range pages {
		s.Append(p)
	}
	return s
}

// ExportSnapshot writes s to path in the format given by its extension.
func ExportSnapshot(path string, s *model.Snapshot) (err error) {
	write, err := writerFor(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := write(f, s); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ImportSnapshot reads a snapshot exported by ExportSnapshot. The start
// time is the file's modification time.
func ImportSnapshot(path string) (*model.Snapshot, error) {
	var read func(io.Reader) (*model.Snapshot, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		read = ReadSnapshotCSV
	case ".json":
		read = ReadSnapshotJSON
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}

	f, err := os.Open(path) //nolint:gosec // User-provided input path is intentional
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if info, err := f.Stat(); err == nil {
		s.StartedAt = info.ModTime()
		s.FinishedAt = info.ModTime()
	}
	return s, nil
}

func writerFor(path string) (func(io.Writer, *model.Snapshot) error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteSnapshotCSV, nil
	case ".json":
		return WriteSnapshotJSON, nil
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}
