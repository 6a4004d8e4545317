package wiki

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var wikiStyleLink = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)

// rewriteLinks converts Redmine wiki links in page content into links to the
// mirrored local filenames:
//
//   - absolute URLs (https://host/projects/<p>/wiki/<title>) and
//     site-relative URLs (/projects/<p>/wiki/<title>) become the mapped
//     filename
//   - [[Title]] and [[Title|Label]] become markdown links
//
// Titles missing from the mapping fall back to the default filename rule so
// links to pages created after the mirror still point somewhere sensible.
func rewriteLinks(content, project string, mapping map[string]string, extension string) string {
	quoted := regexp.QuoteMeta(project)
	absolute := regexp.MustCompile(`https?://[^\s)'"\]]+/projects/` + quoted + `/wiki/([^)\s'"\]]+)`)
	relative := regexp.MustCompile(`/projects/` + quoted + `/wiki/([^)\s'"\]]+)`)

	replaceURL := func(re *regexp.Regexp, match string) string {
		encoded := re.FindStringSubmatch(match)[1]
		title := encoded
		if decoded, err := url.PathUnescape(encoded); err == nil {
			title = decoded
		}
		if fname, ok := mapping[title]; ok {
			return fname
		}
		if fname, ok := mapping[encoded]; ok {
			return fname
		}
		return defaultFilename(title, extension)
	}

	content = absolute.ReplaceAllStringFunc(content, func(m string) string {
		return replaceURL(absolute, m)
	})
	content = relative.ReplaceAllStringFunc(content, func(m string) string {
		return replaceURL(relative, m)
	})

	content = wikiStyleLink.ReplaceAllStringFunc(content, func(m string) string {
		groups := wikiStyleLink.FindStringSubmatch(m)
		title := strings.TrimSpace(groups[1])
		label := groups[2]
		if label == "" {
			label = title
		}
		fname, ok := mapping[title]
		if !ok {
			fname, ok = mapping[url.PathEscape(title)]
		}
		if !ok {
			fname = defaultFilename(title, extension)
		}
		return fmt.Sprintf("[%s](%s)", label, fname)
	})

	return content
}
