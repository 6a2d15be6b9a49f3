package harvest

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	templateScriptURL = "https://d33xdlntwy0kbs.cloudfront.net/cshl_custom.js"
	statusEndpoint    = "https://connect.biorxiv.org/bx_pub_doi_get.php?doi="

	// DefaultSentinelText is the fallback template when the script cannot be
	// fetched or parsed.
	DefaultSentinelText = "This article is a preprint and has not been certified by peer review."

	// Placeholder tokens embedded in the site's status templates. The script
	// builds status strings in JavaScript; these are the literal fragments
	// that get substituted with the journal name and DOI.
	journalToken = `'+y[B].pubjournal+'`
	doiToken     = `+y[B].pubdoi+"`
)

var nowVerbRE = regexp.MustCompile(`Now (\w+) `)

// TemplateMap maps a publication-status keyword (e.g. "published") to its
// template text. The sentinel key holds the preprint-not-yet-published text.
// Built once per run; read-only thereafter.
type TemplateMap map[string]string

// StatusResolver resolves templated publication-status text for identifiers.
type StatusResolver struct {
	fetcher TextFetcher
	logger  *zap.Logger
}

// NewStatusResolver wires a resolver to a plain-text fetcher.
func NewStatusResolver(fetcher TextFetcher, logger *zap.Logger) *StatusResolver {
	return &StatusResolver{fetcher: fetcher, logger: logger}
}

// LoadTemplates fetches the template script and extracts one template per
// status keyword. Best effort: any failure degrades to a map holding only the
// default sentinel, it never aborts the run.
func (r *StatusResolver) LoadTemplates(ctx context.Context) TemplateMap {
	templates := TemplateMap{PublicationSentinel: DefaultSentinelText}

	body, err := r.fetcher.FetchText(ctx, templateScriptURL)
	if err != nil {
		r.logger.Warn("template script fetch failed; using default sentinel only", zap.Error(err))
		return templates
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		r.logger.Warn("template script parse failed; using default sentinel only", zap.Error(err))
		return templates
	}

	found := 0
	doc.Find("div.pub_jnl").Each(func(_ int, block *goquery.Selection) {
		text := strings.TrimSpace(block.Text())
		if text == "" {
			return
		}
		if strings.HasPrefix(text, "This ") {
			templates[PublicationSentinel] = text
			found++
			return
		}
		if m := nowVerbRE.FindStringSubmatch(text); m != nil {
			templates[m[1]] = text
			found++
		}
	})
	if found == 0 {
		r.logger.Warn("template script contained no status blocks; using default sentinel only")
	} else {
		r.logger.Debug("publication templates loaded", zap.Int("templates", found))
	}
	return templates
}

type statusResponse struct {
	Pub []statusEntry `json:"pub"`
}

type statusEntry struct {
	Type    string `json:"pub_type"`
	DOI     string `json:"pub_doi"`
	Journal string `json:"pub_journal"`
}

// Resolve queries the status endpoint for an identifier and substitutes the
// journal and DOI into the matching template. Every failure path yields the
// "None" sentinel; status resolution never raises past this boundary.
func (r *StatusResolver) Resolve(ctx context.Context, id string, templates TemplateMap) string {
	body, err := r.fetcher.FetchText(ctx, statusEndpoint+id)
	if err != nil {
		r.logger.Debug("status endpoint fetch failed", zap.String("id", id), zap.Error(err))
		return PublicationSentinel
	}

	obj := extractObjectLiteral(body)
	if obj == "" {
		return PublicationSentinel
	}
	var resp statusResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		r.logger.Debug("status body parse failed", zap.String("id", id), zap.Error(err))
		return PublicationSentinel
	}
	if len(resp.Pub) == 0 {
		return PublicationSentinel
	}

	entry := resp.Pub[0]
	if entry.Type == "" {
		return PublicationSentinel
	}
	tpl, ok := templates[entry.Type]
	if !ok {
		tpl = templates[PublicationSentinel]
	}
	text := strings.ReplaceAll(tpl, journalToken, entry.Journal)
	text = strings.ReplaceAll(text, doiToken, entry.DOI)
	return strings.NewReplacer(`'`, "", `"`, "").Replace(text)
}

// extractObjectLiteral returns the first well-formed embedded object literal
// in a response body. The endpoint wraps its JSON in JSONP-style parentheses
// and padding newlines.
func extractObjectLiteral(body string) string {
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return ""
	}
	return body[start : end+1]
}
