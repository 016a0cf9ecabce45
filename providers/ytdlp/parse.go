package ytdlp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/alanbriolat/video-acquirer"
)

type info struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Formats []format `json:"formats"`
}

type format struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

func (f format) size() int64 {
	if f.Filesize > 0 {
		return int64(f.Filesize)
	}
	return int64(f.FilesizeApprox)
}

// planSizes is the expected size of each component yt-dlp will fetch for the selected formats, 0 where unknown.
func planSizes(formats []format) []int64 {
	return lo.Map(formats, func(f format, _ int) int64 { return f.size() })
}

func parseMetadata(data []byte) (*video_acquirer.Metadata, error) {
	var i info
	if err := json.Unmarshal(data, &i); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	m := &video_acquirer.Metadata{ID: i.ID, Title: i.Title}
	for _, f := range i.Formats {
		m.Encodings = append(m.Encodings, video_acquirer.Encoding{
			ID:         f.FormatID,
			Container:  f.Ext,
			VideoCodec: f.VCodec,
			AudioCodec: f.ACodec,
			Height:     f.Height,
			Size:       f.size(),
		})
	}
	return m, nil
}

// Line prefixes of the machine-readable output requested by fetchArgs.
const (
	prefixProgress = "PROGRESS|"
	prefixTitle    = "TITLE|"
	prefixPlan     = "PLAN|"
	prefixSize     = "SIZE|"
	prefixFinal    = "FINAL|"
)

// planTemplate prints the selected formats of a merged download as JSON, or NA for a single format.
var planTemplate = prefixPlan + "%(requested_formats.:.{format_id,filesize,filesize_approx})j"

// sizeTemplate prints the size of a single-format download.
var sizeTemplate = prefixSize + "%(filesize,filesize_approx)s"

// parsePlanLine returns the component sizes from a plan line, or false if yt-dlp is fetching a single format.
func parsePlanLine(line string) ([]int64, bool) {
	var formats []format
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, prefixPlan)), &formats); err != nil || len(formats) == 0 {
		return nil, false
	}
	return planSizes(formats), true
}

// progressTemplate reports filename, downloaded bytes, total, estimated total and status, separated by "|".
var progressTemplate = "download:" + prefixProgress + strings.Join([]string{
	"%(progress.filename)s",
	"%(progress.downloaded_bytes)s",
	"%(progress.total_bytes)s",
	"%(progress.total_bytes_estimate)s",
	"%(progress.status)s",
}, "|")

type progressLine struct {
	Filename   string
	Downloaded int64
	Total      int64
	Finished   bool
}

// parseNumber accepts the "NA" yt-dlp prints for missing fields, and floats for estimates.
func parseNumber(s string) int64 {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(v)
	}
	return 0
}

func parseProgressLine(line string) (progressLine, bool) {
	if !strings.HasPrefix(line, prefixProgress) {
		return progressLine{}, false
	}
	fields := strings.Split(strings.TrimPrefix(line, prefixProgress), "|")
	if len(fields) != 5 || fields[0] == "" || fields[0] == "NA" {
		return progressLine{}, false
	}
	p := progressLine{
		Filename:   fields[0],
		Downloaded: parseNumber(fields[1]),
		Total:      parseNumber(fields[2]),
		Finished:   fields[4] == "finished",
	}
	if p.Total == 0 {
		p.Total = parseNumber(fields[3])
	}
	return p, true
}

// errorLines keeps the last few "ERROR:" lines from stderr, which carry the text the classifier needs.
type errorLines struct {
	lines []string
	max   int
}

func (e *errorLines) add(line string) {
	if !strings.HasPrefix(line, "ERROR:") {
		return
	}
	e.lines = append(e.lines, line)
	if len(e.lines) > e.max {
		e.lines = e.lines[len(e.lines)-e.max:]
	}
}

func (e *errorLines) String() string {
	return strings.Join(e.lines, "; ")
}
