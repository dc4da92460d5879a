package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"notecrumbs/internal/nip19"
	"notecrumbs/internal/types"
)

// parseProfileInfo decodes a kind-0 event's content JSON into the
// recognised-keys subset, same behavior as internal/assemble.ParseProfileInfo
// but kept local so internal/render has no dependency on internal/assemble.
func parseProfileInfo(content string) types.ProfileInfo {
	var info types.ProfileInfo
	_ = json.Unmarshal([]byte(content), &info)
	return info
}

// HTMLRenderer produces the HTML artifact for a profile or note reference.
// Templates are kept as package-level string constants parsed once at
// construction, following the teacher's templates/base.go pattern of
// inline `html/template` strings rather than external .html files.
type HTMLRenderer struct {
	baseURL  string
	profile  *template.Template
	note     *template.Template
	sanitize *bluemonday.Policy
}

// NewHTMLRenderer parses the HTML templates once. baseURL prefixes each
// page's canonical link; pages carry no og:url tag, and og:image is set
// only from an article's image tag.
func NewHTMLRenderer(baseURL string) *HTMLRenderer {
	funcs := template.FuncMap{
		"relTime":    relativeTime,
		"abbrev":     abbrevStr,
		"npub":       func(pk string) string { s, _ := nip19.EncodePubkey(pk); return s },
		"noteLink":   func(id string) string { s, _ := nip19.EncodeEventID(id); return s },
		"collapseWS": collapseWhitespace,
	}
	return &HTMLRenderer{
		baseURL:  baseURL,
		profile:  template.Must(template.New("profile").Funcs(funcs).Parse(profileTemplate)),
		note:     template.Must(template.New("note").Funcs(funcs).Parse(noteTemplate)),
		sanitize: bluemonday.UGCPolicy(),
	}
}

// profileView and noteView are the data shapes handed to the templates —
// kept separate from the assembler's payload types so template changes
// never ripple into internal/assemble.
type profileView struct {
	Pubkey      string
	Npub        string
	DisplayName string
	About       string
	Picture     string
	CanonicalURL string
	Missing     bool
	RecentNotes []noteSummary
}

type noteSummary struct {
	ID        string
	Content   string
	CreatedAt string
}

type noteView struct {
	EventID       string
	AuthorName    string
	AuthorMissing bool
	CreatedAt     string
	ContentHTML   template.HTML
	IsArticle     bool
	ArticleTitle  string
	ArticleImage  string
	ArticleBody   template.HTML
	Topics        []string
	Reactions     int
	Reposts       int
	CanonicalURL  string
	OGDescription string
	OGImage       string
}

// RenderProfile writes the profile page for payload.
func (r *HTMLRenderer) RenderProfile(payload types.ProfilePayload) ([]byte, error) {
	view := profileView{
		Pubkey:      payload.Pubkey,
		DisplayName: payload.DisplayName,
		Missing:     payload.Missing != nil,
	}
	view.Npub, _ = nip19.EncodePubkey(payload.Pubkey)
	view.CanonicalURL = r.baseURL + "/" + view.Npub
	if payload.Profile != nil {
		info := parseProfileInfo(payload.Profile.Content)
		view.About = collapseWhitespace(abbreviate(info.About, 280))
		view.Picture = info.Picture
	}
	for _, n := range payload.RecentNotes {
		view.RecentNotes = append(view.RecentNotes, noteSummary{
			ID:        n.ID,
			Content:   collapseWhitespace(abbreviate(n.Content, 200)),
			CreatedAt: relativeTime(n.CreatedAt),
		})
	}

	var buf bytes.Buffer
	if err := r.profile.ExecuteTemplate(&buf, "profile", view); err != nil {
		return nil, wrapRenderErr(err)
	}
	return buf.Bytes(), nil
}

// RenderNote writes the note/article page for payload.
func (r *HTMLRenderer) RenderNote(payload types.NotePayload) ([]byte, error) {
	view := noteView{
		EventID:       payload.Event.ID,
		AuthorMissing: payload.AuthorMissing != nil,
		CreatedAt:     relativeTime(payload.Event.CreatedAt),
		Reactions:     payload.Reactions.Reactions,
		Reposts:       payload.Reactions.Reposts,
	}
	id, _ := nip19.EncodeEventID(payload.Event.ID)
	view.CanonicalURL = r.baseURL + "/" + id

	if payload.Author != nil {
		info := parseProfileInfo(payload.Author.Content)
		view.AuthorName = firstNonEmpty(info.DisplayName, info.Name, "nostrich")
	} else {
		view.AuthorName = "nostrich"
	}

	view.ContentHTML = r.renderBlocksHTML(payload.Blocks)
	view.OGDescription = collapseWhitespace(abbreviate(payload.Event.Content, 200))

	if payload.Article != nil {
		view.IsArticle = true
		view.ArticleTitle = payload.Article.Title
		view.ArticleImage = payload.Article.Image
		view.Topics = payload.Article.Topics
		if payload.Article.PublishedAt > 0 {
			view.CreatedAt = relativeTime(payload.Article.PublishedAt)
		}
		view.ArticleBody = r.renderMarkdown(payload.Event.Content)
		if payload.Article.Summary != "" {
			view.OGDescription = collapseWhitespace(abbreviate(payload.Article.Summary, 200))
		}
		view.OGImage = payload.Article.Image
	}

	var buf bytes.Buffer
	if err := r.note.ExecuteTemplate(&buf, "note", view); err != nil {
		return nil, wrapRenderErr(err)
	}
	return buf.Bytes(), nil
}

// renderBlocksHTML renders parsed content blocks to safe inline HTML:
// text is escaped, urls/hashtags/mentions become anchors, invoices render
// as plain text (payment UX is out of scope).
func (r *HTMLRenderer) renderBlocksHTML(blocks []types.Block) template.HTML {
	var buf bytes.Buffer
	for _, b := range blocks {
		switch b.Type {
		case types.BlockText:
			template.HTMLEscape(&buf, []byte(b.Text))
		case types.BlockURL:
			buf.WriteString(`<a href="`)
			template.HTMLEscape(&buf, []byte(b.Text))
			buf.WriteString(`" rel="noopener noreferrer">`)
			template.HTMLEscape(&buf, []byte(b.Text))
			buf.WriteString(`</a>`)
		case types.BlockHashtag:
			buf.WriteString(`<a href="/t/`)
			template.HTMLEscape(&buf, []byte(b.Text))
			buf.WriteString(`">#`)
			template.HTMLEscape(&buf, []byte(b.Text))
			buf.WriteString(`</a>`)
		case types.BlockMention, types.BlockIndexedMention:
			buf.WriteString(`<a href="/`)
			template.HTMLEscape(&buf, []byte(b.Raw))
			buf.WriteString(`">`)
			template.HTMLEscape(&buf, []byte(abbrevStr(b.Raw)))
			buf.WriteString(`</a>`)
		case types.BlockInvoice:
			template.HTMLEscape(&buf, []byte(b.Text))
		}
	}
	return template.HTML(r.sanitize.SanitizeBytes(buf.Bytes()))
}

// renderMarkdown converts an article's markdown content to sanitized HTML,
// grounded on the teacher's renderMarkdown (html.go).
func (r *HTMLRenderer) renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(r.sanitize.SanitizeBytes(buf.Bytes()))
}

func wrapRenderErr(err error) error {
	return &renderErr{err}
}

type renderErr struct{ cause error }

func (e *renderErr) Error() string { return "render: " + e.cause.Error() }
func (e *renderErr) Unwrap() error { return e.cause }
func (e *renderErr) Is(target error) bool { return target == ErrRenderFailed }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// relativeTime is a human-readable age string, grounded on the teacher's
// formatRelativeTime (html.go).
func relativeTime(ts int64) string {
	t := time.Unix(ts, 0)
	diff := time.Since(t)
	if diff < 0 {
		return "just now"
	}

	minutes := int(diff.Minutes())
	hours := int(diff.Hours())
	days := hours / 24

	switch {
	case minutes < 1:
		return "just now"
	case minutes == 1:
		return "1 min ago"
	case minutes < 60:
		return fmt.Sprintf("%d mins ago", minutes)
	case hours == 1:
		return "1 hour ago"
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	case days == 1:
		return "yesterday"
	case days < 30:
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}

const profileTemplate = `{{define "profile"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.DisplayName}}</title>
<meta property="og:title" content="{{.DisplayName}}">
{{if .About}}<meta name="description" content="{{.About}}">{{end}}
<link rel="canonical" href="{{.CanonicalURL}}">
</head>
<body>
<header>
{{if .Picture}}<img src="{{.Picture}}" alt="" width="80" height="80">{{end}}
<h1>{{.DisplayName}}</h1>
</header>
{{if .Missing}}<p class="notice">Profile not yet available — checking relays.</p>{{end}}
{{if .About}}<p class="about">{{.About}}</p>{{end}}
<section class="feed">
{{range .RecentNotes}}
<article><p>{{.Content}}</p><time>{{.CreatedAt}}</time></article>
{{end}}
</section>
</body>
</html>{{end}}`

const noteTemplate = `{{define "note"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{if .IsArticle}}{{.ArticleTitle}}{{else}}{{.AuthorName}} on nostr{{end}}</title>
<meta property="og:type" content="{{if .IsArticle}}article{{else}}website{{end}}">
<meta property="og:description" content="{{.OGDescription}}">
{{if .OGImage}}<meta property="og:image" content="{{.OGImage}}">{{end}}
<link rel="canonical" href="{{.CanonicalURL}}">
</head>
<body>
<header><address>{{.AuthorName}}</address><time>{{.CreatedAt}}</time></header>
{{if .AuthorMissing}}<p class="notice">Author profile not yet available — checking relays.</p>{{end}}
{{if .IsArticle}}
<h1>{{.ArticleTitle}}</h1>
{{if .ArticleImage}}<img src="{{.ArticleImage}}" alt="">{{end}}
<div class="article-body">{{.ArticleBody}}</div>
{{if .Topics}}<ul class="topics">{{range .Topics}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{else}}
<div class="content">{{.ContentHTML}}</div>
{{end}}
<footer>{{.Reactions}} reactions · {{.Reposts}} reposts</footer>
</body>
</html>{{end}}`
