package source

import (
	"path"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	apperrors "github.com/kyleking/docs2ddl/internal/errors"
)

// NormalizeDocument returns markdown for a fetched document. HTML files are
// converted so that headings and tables reach the extractor as markdown;
// everything else is returned unchanged.
func NormalizeDocument(filePath, content string) (string, error) {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".html", ".htm":
		markdown, err := htmltomarkdown.ConvertString(content)
		if err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrTypeDocumentUnavailable, "failed to convert %s to markdown", filePath)
		}

		return markdown, nil
	default:
		return content, nil
	}
}
