package video_acquirer

import (
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
)

const (
	MaxSlugLength = 80
	DefaultSlug   = "video"
)

// TargetConfig decides the name an artifact is delivered under.
type TargetConfig interface {
	GetTargetFilename(args TargetFileArgs) (string, error)
}

// TargetFileArgs are available to the target filename template.
type TargetFileArgs struct {
	SourceID string
	Title    string
	Slug     string
	Ext      string
}

type targetConfig struct {
	TargetFileTemplate *template.Template
}

// NewTargetConfig parses tmpl as the target filename template; an empty tmpl uses "{{.Slug}}.{{.Ext}}".
func NewTargetConfig(tmpl string) (TargetConfig, error) {
	if tmpl == "" {
		tmpl = "{{.Slug}}.{{.Ext}}"
	}
	t, err := template.New("target_file").Parse(tmpl)
	if err != nil {
		return nil, err
	}
	return &targetConfig{TargetFileTemplate: t}, nil
}

func (c *targetConfig) GetTargetFilename(args TargetFileArgs) (string, error) {
	if args.Slug == "" {
		args.Slug = Slugify(args.Title)
	}
	args.Ext = strings.TrimPrefix(args.Ext, ".")
	builder := strings.Builder{}
	if err := c.TargetFileTemplate.Execute(&builder, &args); err != nil {
		return "", err
	}
	// The template must not be able to escape the output directory
	return filepath.Base(builder.String()), nil
}

var slugInvalid = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Slugify replaces every character outside [a-zA-Z0-9_-] with "_", trims leading and trailing "_", and limits the
// length to MaxSlugLength. An empty result becomes DefaultSlug.
func Slugify(title string) string {
	slug := slugInvalid.ReplaceAllString(title, "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "_")
	}
	if slug == "" {
		return DefaultSlug
	}
	return slug
}

var knownMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4a":  "audio/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".3gp":  "video/3gpp",
}

// MimeTypeForPath returns the MIME type for a file extension, defaulting to video/mp4.
func MimeTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := knownMimeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return strings.SplitN(t, ";", 2)[0]
	}
	return "video/mp4"
}
