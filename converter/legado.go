package converter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/pevans/booksource/rule"
)

// LegadoRule is a Legado book source document.
type LegadoRule struct {
	BookSourceURL     string `json:"bookSourceUrl"`
	BookSourceName    string `json:"bookSourceName"`
	BookSourceGroup   string `json:"bookSourceGroup,omitempty"`
	BookSourceType    *int   `json:"bookSourceType,omitempty"`
	BookSourceComment string `json:"bookSourceComment,omitempty"`
	CustomOrder       *int   `json:"customOrder,omitempty"`
	Enabled           *bool  `json:"enabled,omitempty"`
	EnabledExplore    *bool  `json:"enabledExplore,omitempty"`
	LastUpdateTime    int64  `json:"lastUpdateTime,omitempty"`
	Weight            *int   `json:"weight,omitempty"`
	RespondTime       *int   `json:"respondTime,omitempty"`
	JSLib             string `json:"jsLib,omitempty"`
	EnabledCookieJar  *bool  `json:"enabledCookieJar,omitempty"`
	CustomButton      *bool  `json:"customButton,omitempty"`
	EventListener     *bool  `json:"eventListener,omitempty"`

	// Header is a JSON object encoded as a string. A bare object is
	// accepted on input.
	Header any `json:"header,omitempty"`

	LoginURL       string `json:"loginUrl,omitempty"`
	LoginUI        string `json:"loginUi,omitempty"`
	LoginCheckJS   string `json:"loginCheckJs,omitempty"`
	BookURLPattern string `json:"bookUrlPattern,omitempty"`

	SearchURL    string              `json:"searchUrl,omitempty"`
	RuleSearch   *LegadoBookListRule `json:"ruleSearch,omitempty"`
	ExploreURL   string              `json:"exploreUrl,omitempty"`
	RuleExplore  *LegadoBookListRule `json:"ruleExplore,omitempty"`
	RuleBookInfo *LegadoBookInfoRule `json:"ruleBookInfo,omitempty"`
	RuleToc      *LegadoTocRule      `json:"ruleToc,omitempty"`
	RuleContent  *LegadoContentRule  `json:"ruleContent,omitempty"`
}

// LegadoBookListRule is the shape of ruleSearch and ruleExplore.
type LegadoBookListRule struct {
	BookList    string `json:"bookList,omitempty"`
	Name        string `json:"name,omitempty"`
	Author      string `json:"author,omitempty"`
	Kind        string `json:"kind,omitempty"`
	WordCount   string `json:"wordCount,omitempty"`
	LastChapter string `json:"lastChapter,omitempty"`
	Intro       string `json:"intro,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
	BookURL     string `json:"bookUrl,omitempty"`
}

// LegadoBookInfoRule is ruleBookInfo.
type LegadoBookInfoRule struct {
	Init        string `json:"init,omitempty"`
	Name        string `json:"name,omitempty"`
	Author      string `json:"author,omitempty"`
	Kind        string `json:"kind,omitempty"`
	WordCount   string `json:"wordCount,omitempty"`
	LastChapter string `json:"lastChapter,omitempty"`
	Intro       string `json:"intro,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
	TocURL      string `json:"tocUrl,omitempty"`
	CanReName   *bool  `json:"canReName,omitempty"`
}

// LegadoTocRule is ruleToc.
type LegadoTocRule struct {
	ChapterList string `json:"chapterList,omitempty"`
	ChapterName string `json:"chapterName,omitempty"`
	ChapterURL  string `json:"chapterUrl,omitempty"`
	IsVip       string `json:"isVip,omitempty"`
	IsPay       string `json:"isPay,omitempty"`
	UpdateTime  string `json:"updateTime,omitempty"`
	NextTocURL  string `json:"nextTocUrl,omitempty"`
}

// LegadoContentRule is ruleContent.
type LegadoContentRule struct {
	Content        string `json:"content,omitempty"`
	NextContentURL string `json:"nextContentUrl,omitempty"`
	WebJS          string `json:"webJs,omitempty"`
	SourceRegex    string `json:"sourceRegex,omitempty"`
	ReplaceRegex   string `json:"replaceRegex,omitempty"`
	ImageStyle     string `json:"imageStyle,omitempty"`
	PayAction      string `json:"payAction,omitempty"`
}

var legadoKeys = jsonKeys(LegadoRule{})

var hostPattern = regexp.MustCompile(`^(https?://[^/]+)`)

// extractHost returns the origin of a source URL.
func extractHost(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	if m := hostPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

func legadoContentType(t *int) rule.ContentType {
	if t != nil && *t == 1 {
		return rule.ContentAudio
	}
	return rule.ContentNovel
}

func legadoBookSourceType(c rule.ContentType) int {
	if c == rule.ContentAudio {
		return 1
	}
	return 0
}

// parseHeader decodes a header value. Strings that are not a JSON object
// yield nil.
func parseHeader(header any) map[string]string {
	var obj map[string]any
	switch h := header.(type) {
	case string:
		trimmed := strings.TrimSpace(h)
		if !strings.HasPrefix(trimmed, "{") {
			return nil
		}
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return nil
		}
	case map[string]any:
		obj = h
	default:
		return nil
	}

	headers := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			headers[k] = s
		} else {
			headers[k] = fmt.Sprint(v)
		}
	}
	return headers
}

// marshalHeader encodes headers the way Legado stores them: compact, with
// sorted keys and no HTML escaping.
func marshalHeader(headers map[string]string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(headers); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// LegadoConverter converts Legado documents.
type LegadoConverter struct{}

// NewLegadoConverter returns a Legado converter.
func NewLegadoConverter() *LegadoConverter {
	return &LegadoConverter{}
}

// Format reports rule.FormatLegado.
func (c *LegadoConverter) Format() rule.Format {
	return rule.FormatLegado
}

// Detect reports whether raw has string bookSourceUrl and bookSourceName.
func (c *LegadoConverter) Detect(raw map[string]any) bool {
	_, hasURL := raw["bookSourceUrl"].(string)
	_, hasName := raw["bookSourceName"].(string)
	return hasURL && hasName
}

// ToUniversal decodes raw and converts it.
func (c *LegadoConverter) ToUniversal(raw map[string]any, opts Options) (*rule.UniversalRule, error) {
	var doc LegadoRule
	if _, err := decode(raw, &doc); err != nil {
		return nil, err
	}
	r, err := c.ToUniversalRule(&doc, opts)
	if err != nil {
		return nil, err
	}
	if opts.PreserveOriginal {
		r.Meta.OriginalData = copyMap(raw)
	}
	return r, nil
}

// ToUniversalRule converts a typed Legado document.
func (c *LegadoConverter) ToUniversalRule(doc *LegadoRule, opts Options) (*rule.UniversalRule, error) {
	if doc.BookSourceURL == "" || doc.BookSourceName == "" {
		return nil, ErrMissingIdentity
	}

	f := newInboundCodec(rule.FormatLegado, opts)
	r := &rule.UniversalRule{
		ID:          doc.BookSourceURL,
		Name:        doc.BookSourceName,
		Host:        extractHost(doc.BookSourceURL),
		Group:       doc.BookSourceGroup,
		Sort:        doc.CustomOrder,
		Enabled:     doc.Enabled,
		Comment:     doc.BookSourceComment,
		JSLib:       doc.JSLib,
		ContentType: legadoContentType(doc.BookSourceType),
		Headers:     parseHeader(doc.Header),
	}
	if raw, ok := doc.Header.(string); ok && raw != "" && marshalHeader(r.Headers) != raw {
		f.sources["header"] = raw
	}

	if doc.EnabledCookieJar != nil || doc.Weight != nil || doc.RespondTime != nil ||
		doc.LoginUI != "" || doc.BookURLPattern != "" || doc.CustomButton != nil || doc.EventListener != nil {
		r.Legado = &rule.LegadoExtra{
			EnabledCookieJar: doc.EnabledCookieJar,
			Weight:           doc.Weight,
			RespondTime:      doc.RespondTime,
			LoginUI:          doc.LoginUI,
			BookURLPattern:   doc.BookURLPattern,
			CustomButton:     doc.CustomButton,
			EventListener:    doc.EventListener,
		}
	}

	if doc.SearchURL != "" || doc.RuleSearch != nil {
		list := doc.RuleSearch
		if list == nil {
			list = &LegadoBookListRule{}
		}
		r.Search = &rule.SearchRule{
			Enabled:       doc.SearchURL != "",
			URL:           f.in("search.url", doc.SearchURL, kindURL),
			List:          f.in("search.list", list.BookList, kindList),
			Name:          f.in("search.name", list.Name, kindExpr),
			Author:        f.in("search.author", list.Author, kindExpr),
			Tags:          f.in("search.tags", list.Kind, kindExpr),
			WordCount:     f.in("search.wordCount", list.WordCount, kindExpr),
			LatestChapter: f.in("search.latestChapter", list.LastChapter, kindExpr),
			Description:   f.in("search.description", list.Intro, kindExpr),
			Cover:         f.in("search.cover", list.CoverURL, kindExpr),
			Result:        f.in("search.result", list.BookURL, kindExpr),
		}
	}

	if info := doc.RuleBookInfo; info != nil {
		r.Detail = &rule.DetailRule{
			Enabled:       true,
			Init:          f.in("detail.init", info.Init, kindExpr),
			Name:          f.in("detail.name", info.Name, kindExpr),
			Author:        f.in("detail.author", info.Author, kindExpr),
			Tags:          f.in("detail.tags", info.Kind, kindExpr),
			WordCount:     f.in("detail.wordCount", info.WordCount, kindExpr),
			LatestChapter: f.in("detail.latestChapter", info.LastChapter, kindExpr),
			Description:   f.in("detail.description", info.Intro, kindExpr),
			Cover:         f.in("detail.cover", info.CoverURL, kindExpr),
			TocURL:        f.in("detail.tocUrl", info.TocURL, kindExpr),
			CanRename:     info.CanReName,
		}
	}

	if toc := doc.RuleToc; toc != nil {
		r.Chapter = &rule.ChapterRule{
			List:    f.in("chapter.list", toc.ChapterList, kindList),
			Name:    f.in("chapter.name", toc.ChapterName, kindExpr),
			Result:  f.in("chapter.result", toc.ChapterURL, kindExpr),
			Time:    f.in("chapter.time", toc.UpdateTime, kindExpr),
			NextURL: f.in("chapter.nextUrl", toc.NextTocURL, kindExpr),
			IsVip:   f.in("chapter.isVip", toc.IsVip, kindExpr),
			IsPay:   f.in("chapter.isPay", toc.IsPay, kindExpr),
		}
	}

	if doc.ExploreURL != "" || doc.RuleExplore != nil {
		list := doc.RuleExplore
		if list == nil {
			list = &LegadoBookListRule{}
		}
		enabled := doc.ExploreURL != ""
		if doc.EnabledExplore != nil {
			enabled = *doc.EnabledExplore
		}
		r.Discover = &rule.DiscoverRule{
			Enabled:       enabled,
			URL:           f.in("discover.url", doc.ExploreURL, kindURL),
			List:          f.in("discover.list", list.BookList, kindList),
			Name:          f.in("discover.name", list.Name, kindExpr),
			Author:        f.in("discover.author", list.Author, kindExpr),
			Tags:          f.in("discover.tags", list.Kind, kindExpr),
			WordCount:     f.in("discover.wordCount", list.WordCount, kindExpr),
			LatestChapter: f.in("discover.latestChapter", list.LastChapter, kindExpr),
			Description:   f.in("discover.description", list.Intro, kindExpr),
			Cover:         f.in("discover.cover", list.CoverURL, kindExpr),
			Result:        f.in("discover.result", list.BookURL, kindExpr),
		}
	}

	if ct := doc.RuleContent; ct != nil {
		r.Content = &rule.ContentRule{
			Items:        f.in("content.items", ct.Content, kindExpr),
			NextURL:      f.in("content.nextUrl", ct.NextContentURL, kindExpr),
			SourceRegex:  ct.SourceRegex,
			PayAction:    ct.PayAction,
			ReplaceRules: parseReplaceRegex(ct.ReplaceRegex),
		}
		if ct.ReplaceRegex != "" && formatReplaceRegex(r.Content.ReplaceRules) != ct.ReplaceRegex {
			f.sources["content.replaceRules"] = ct.ReplaceRegex
		}
		if ct.WebJS != "" || ct.ImageStyle != "" {
			r.Content.Legado = &rule.ContentLegado{
				WebJS:      ct.WebJS,
				ImageStyle: ct.ImageStyle,
			}
		}
	}

	if doc.LoginURL != "" || doc.LoginCheckJS != "" {
		r.Login = &rule.LoginRule{URL: doc.LoginURL, CheckJS: doc.LoginCheckJS}
	}

	if f.err != nil {
		return nil, f.err
	}

	updated := doc.LastUpdateTime
	if updated == 0 {
		updated = time.Now().UnixMilli()
	}
	r.FieldSources = f.fieldSources()
	r.Meta = &rule.Meta{
		SourceFormat: rule.FormatUniversal,
		OriginFormat: rule.FormatLegado,
		CreatedAt:    time.Now().UnixMilli(),
		UpdatedAt:    updated,
	}
	return r, nil
}

// FromUniversal converts r and returns the generic document.
func (c *LegadoConverter) FromUniversal(r *rule.UniversalRule, opts Options) (map[string]any, error) {
	doc, err := c.FromUniversalRule(r, opts)
	if err != nil {
		return nil, err
	}
	out, err := encode(doc)
	if err != nil {
		return nil, err
	}
	restoreUnmodeled(out, r, rule.FormatLegado, legadoKeys)
	return out, nil
}

// FromUniversalRule converts r into a typed Legado document.
func (c *LegadoConverter) FromUniversalRule(r *rule.UniversalRule, opts Options) (*LegadoRule, error) {
	if r == nil || r.Name == "" || (r.ID == "" && r.Host == "") {
		return nil, ErrMissingIdentity
	}

	f := newOutboundCodec(rule.FormatLegado, r, opts)
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	updated := time.Now().UnixMilli()
	if r.Meta != nil && r.Meta.UpdatedAt != 0 {
		updated = r.Meta.UpdatedAt
	}

	doc := &LegadoRule{
		BookSourceURL:     legadoSourceURL(r),
		BookSourceName:    r.Name,
		BookSourceGroup:   r.Group,
		BookSourceType:    intPtr(legadoBookSourceType(r.ContentType)),
		BookSourceComment: r.Comment,
		CustomOrder:       r.Sort,
		Enabled:           boolPtr(enabled),
		EnabledExplore:    boolPtr(r.Discover != nil && r.Discover.Enabled),
		LastUpdateTime:    updated,
		JSLib:             r.JSLib,
	}

	if raw, ok := f.spelling("header"); ok && reflect.DeepEqual(parseHeader(raw), r.Headers) {
		doc.Header = raw
	} else if len(r.Headers) > 0 {
		doc.Header = marshalHeader(r.Headers)
	}

	if lg := r.Legado; lg != nil {
		doc.EnabledCookieJar = lg.EnabledCookieJar
		doc.Weight = lg.Weight
		doc.RespondTime = lg.RespondTime
		doc.LoginUI = lg.LoginUI
		doc.BookURLPattern = lg.BookURLPattern
		doc.CustomButton = lg.CustomButton
		doc.EventListener = lg.EventListener
	}

	if lg := r.Login; lg != nil {
		doc.LoginURL = lg.URL
		doc.LoginCheckJS = lg.CheckJS
	}

	if s := r.Search; s != nil {
		doc.SearchURL = f.out("search.url", s.URL, kindURL)
		doc.RuleSearch = &LegadoBookListRule{
			BookList:    f.out("search.list", s.List, kindList),
			Name:        f.out("search.name", s.Name, kindExpr),
			Author:      f.out("search.author", s.Author, kindExpr),
			Kind:        f.out("search.tags", s.Tags, kindExpr),
			WordCount:   f.out("search.wordCount", s.WordCount, kindExpr),
			LastChapter: f.out("search.latestChapter", s.LatestChapter, kindExpr),
			Intro:       f.out("search.description", s.Description, kindExpr),
			CoverURL:    f.out("search.cover", s.Cover, kindExpr),
			BookURL:     f.out("search.result", s.Result, kindExpr),
		}
	}

	if d := r.Detail; d != nil {
		doc.RuleBookInfo = &LegadoBookInfoRule{
			Init:        f.out("detail.init", d.Init, kindExpr),
			Name:        f.out("detail.name", d.Name, kindExpr),
			Author:      f.out("detail.author", d.Author, kindExpr),
			Kind:        f.out("detail.tags", d.Tags, kindExpr),
			WordCount:   f.out("detail.wordCount", d.WordCount, kindExpr),
			LastChapter: f.out("detail.latestChapter", d.LatestChapter, kindExpr),
			Intro:       f.out("detail.description", d.Description, kindExpr),
			CoverURL:    f.out("detail.cover", d.Cover, kindExpr),
			TocURL:      f.out("detail.tocUrl", d.TocURL, kindExpr),
			CanReName:   d.CanRename,
		}
	}

	if ch := r.Chapter; ch != nil {
		doc.RuleToc = &LegadoTocRule{
			ChapterList: f.out("chapter.list", ch.List, kindList),
			ChapterName: f.out("chapter.name", ch.Name, kindExpr),
			ChapterURL:  f.out("chapter.result", ch.Result, kindExpr),
			UpdateTime:  f.out("chapter.time", ch.Time, kindExpr),
			NextTocURL:  f.out("chapter.nextUrl", ch.NextURL, kindExpr),
			IsVip:       f.out("chapter.isVip", ch.IsVip, kindExpr),
			IsPay:       f.out("chapter.isPay", ch.IsPay, kindExpr),
		}
	}

	if d := r.Discover; d != nil {
		doc.ExploreURL = f.out("discover.url", d.URL, kindURL)
		doc.RuleExplore = &LegadoBookListRule{
			BookList:    f.out("discover.list", d.List, kindList),
			Name:        f.out("discover.name", d.Name, kindExpr),
			Author:      f.out("discover.author", d.Author, kindExpr),
			Kind:        f.out("discover.tags", d.Tags, kindExpr),
			WordCount:   f.out("discover.wordCount", d.WordCount, kindExpr),
			LastChapter: f.out("discover.latestChapter", d.LatestChapter, kindExpr),
			Intro:       f.out("discover.description", d.Description, kindExpr),
			CoverURL:    f.out("discover.cover", d.Cover, kindExpr),
			BookURL:     f.out("discover.result", d.Result, kindExpr),
		}
	}

	if ct := r.Content; ct != nil {
		doc.RuleContent = &LegadoContentRule{
			Content:        f.out("content.items", ct.Items, kindExpr),
			NextContentURL: f.out("content.nextUrl", ct.NextURL, kindExpr),
			SourceRegex:    ct.SourceRegex,
			PayAction:      ct.PayAction,
		}
		if raw, ok := f.spelling("content.replaceRules"); ok && reflect.DeepEqual(parseReplaceRegex(raw), ct.ReplaceRules) {
			doc.RuleContent.ReplaceRegex = raw
		} else {
			doc.RuleContent.ReplaceRegex = formatReplaceRegex(ct.ReplaceRules)
		}
		if lg := ct.Legado; lg != nil {
			doc.RuleContent.WebJS = lg.WebJS
			doc.RuleContent.ImageStyle = lg.ImageStyle
		}
	}

	return doc, nil
}

// parseReplaceRegex reads Legado's ##pattern##replacement chain. A
// pattern without a partner deletes its matches.
func parseReplaceRegex(raw string) []rule.ReplaceRule {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(raw, "##"), "##")

	var rules []rule.ReplaceRule
	for i := 0; i < len(parts); i += 2 {
		r := rule.ReplaceRule{Pattern: parts[i], IsRegex: true}
		if i+1 < len(parts) {
			r.Replacement = parts[i+1]
		}
		rules = append(rules, r)
	}
	return rules
}

// formatReplaceRegex writes rules as a ##pattern##replacement chain. Only
// the last rule may leave its replacement off, and plain-text patterns are
// quoted.
func formatReplaceRegex(rules []rule.ReplaceRule) string {
	var b strings.Builder
	for i, r := range rules {
		pattern := r.Pattern
		if !r.IsRegex {
			pattern = regexp.QuoteMeta(pattern)
		}
		b.WriteString("##" + pattern)
		if r.Replacement != "" || i < len(rules)-1 {
			b.WriteString("##" + r.Replacement)
		}
	}
	return b.String()
}

// legadoSourceURL picks the bookSourceUrl: the id when it is a URL,
// otherwise the host.
func legadoSourceURL(r *rule.UniversalRule) string {
	if hostPattern.MatchString(r.ID) || r.Host == "" {
		return r.ID
	}
	return r.Host
}

// Validate checks the structural requirements of a Legado document.
func (c *LegadoConverter) Validate(raw map[string]any) ValidationResult {
	result := newValidationResult()

	var doc LegadoRule
	coerced, err := decode(raw, &doc)
	if err != nil {
		result.addError("", err.Error(), CodeRequiredField)
		return result
	}
	for _, issue := range coerced {
		result.addWarning(issue.Field, issue.Message, issue.Code)
	}

	if doc.BookSourceURL == "" {
		result.addError("bookSourceUrl", "bookSourceUrl is required", CodeRequiredField)
	}
	if doc.BookSourceName == "" {
		result.addError("bookSourceName", "bookSourceName is required", CodeRequiredField)
	}
	if doc.SearchURL != "" && doc.RuleSearch == nil {
		result.addWarning("ruleSearch", "searchUrl is set but ruleSearch is missing", CodeMissingRule)
	}
	if doc.RuleToc == nil || doc.RuleToc.ChapterList == "" {
		result.addWarning("ruleToc.chapterList", "ruleToc.chapterList is recommended", CodeRecommendedField)
	}
	if doc.RuleContent == nil || doc.RuleContent.Content == "" {
		result.addWarning("ruleContent.content", "ruleContent.content is recommended", CodeRecommendedField)
	}

	return result
}
