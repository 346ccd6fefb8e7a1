package crawl

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)

// normalizeLink resolves href against base, strips the fragment, and
// reports ok=false for anything off the base's origin or not http(s)
// (spec §4.4 "drop external origin, strip fragments").
func normalizeLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(resolved.Host, base.Host) {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

// extractLinksFromMarkdown pulls `[text](url)` targets out of markdown-ish
// content, resolving and filtering each the same way as HTML hrefs.
func extractLinksFromMarkdown(base *url.URL, markdown string) []string {
	var out []string
	for _, m := range markdownLinkPattern.FindAllStringSubmatch(markdown, -1) {
		if len(m) < 2 {
			continue
		}
		if link, ok := normalizeLink(base, m[1]); ok {
			out = append(out, link)
		}
	}
	return out
}

// matchesPatterns applies an include list then an exclude list, both glob
// patterns matched against the URL path (spec §4.4 "Filter chain applies
// include_patterns then exclude_patterns (glob)").
func matchesPatterns(rawURL string, include, exclude []string) bool {
	subject := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		subject = u.Path
	}

	if len(include) > 0 {
		matched := false
		for _, p := range include {
			if ok, _ := path.Match(p, subject); ok {
				matched = true
				break
			}
			if ok, _ := path.Match(p, rawURL); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, p := range exclude {
		if ok, _ := path.Match(p, subject); ok {
			return false
		}
		if ok, _ := path.Match(p, rawURL); ok {
			return false
		}
	}
	return true
}

// dedupLinks keeps first-seen order while dropping repeats.
func dedupLinks(links []string) []string {
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
