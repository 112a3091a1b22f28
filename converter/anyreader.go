package converter

import (
	"time"

	"github.com/google/uuid"

	"github.com/pevans/booksource/rule"
)

// AnyReaderRule is an any-reader source document.
type AnyReaderRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Host        string `json:"host"`
	Icon        string `json:"icon,omitempty"`
	ContentType int    `json:"contentType"`
	Sort        *int   `json:"sort,omitempty"`
	Author      string `json:"author,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
	LoadJS      string `json:"loadJs,omitempty"`
	Group       string `json:"group,omitempty"`
	UseCryptoJS *bool  `json:"useCryptoJS,omitempty"`
	PostScript  string `json:"postScript,omitempty"`
	Cookies     string `json:"cookies,omitempty"`
	ViewStyle   *int   `json:"viewStyle,omitempty"`

	EnableSearch      *bool  `json:"enableSearch,omitempty"`
	SearchURL         string `json:"searchUrl,omitempty"`
	SearchList        string `json:"searchList,omitempty"`
	SearchName        string `json:"searchName,omitempty"`
	SearchCover       string `json:"searchCover,omitempty"`
	SearchAuthor      string `json:"searchAuthor,omitempty"`
	SearchChapter     string `json:"searchChapter,omitempty"`
	SearchDescription string `json:"searchDescription,omitempty"`
	SearchResult      string `json:"searchResult,omitempty"`
	SearchTags        string `json:"searchTags,omitempty"`
	SearchItems       string `json:"searchItems,omitempty"`

	ChapterURL       string `json:"chapterUrl,omitempty"`
	ChapterList      string `json:"chapterList,omitempty"`
	ChapterName      string `json:"chapterName,omitempty"`
	ChapterCover     string `json:"chapterCover,omitempty"`
	ChapterTime      string `json:"chapterTime,omitempty"`
	ChapterResult    string `json:"chapterResult,omitempty"`
	ChapterNextURL   string `json:"chapterNextUrl,omitempty"`
	ChapterItems     string `json:"chapterItems,omitempty"`
	ChapterLock      string `json:"chapterLock,omitempty"`
	EnableMultiRoads *bool  `json:"enableMultiRoads,omitempty"`
	ChapterRoads     string `json:"chapterRoads,omitempty"`
	ChapterRoadName  string `json:"chapterRoadName,omitempty"`

	EnableDiscover      *bool  `json:"enableDiscover,omitempty"`
	DiscoverURL         string `json:"discoverUrl,omitempty"`
	DiscoverList        string `json:"discoverList,omitempty"`
	DiscoverName        string `json:"discoverName,omitempty"`
	DiscoverCover       string `json:"discoverCover,omitempty"`
	DiscoverAuthor      string `json:"discoverAuthor,omitempty"`
	DiscoverDescription string `json:"discoverDescription,omitempty"`
	DiscoverResult      string `json:"discoverResult,omitempty"`
	DiscoverTags        string `json:"discoverTags,omitempty"`
	DiscoverChapter     string `json:"discoverChapter,omitempty"`
	DiscoverNextURL     string `json:"discoverNextUrl,omitempty"`
	DiscoverItems       string `json:"discoverItems,omitempty"`

	ContentURL     string `json:"contentUrl,omitempty"`
	ContentItems   string `json:"contentItems,omitempty"`
	ContentNextURL string `json:"contentNextUrl,omitempty"`
	ContentDecoder string `json:"contentDecoder,omitempty"`

	LoginURL string `json:"loginUrl,omitempty"`
}

var anyReaderKeys = jsonKeys(AnyReaderRule{})

var anyReaderContentTypes = map[int]rule.ContentType{
	0: rule.ContentManga,
	1: rule.ContentNovel,
	2: rule.ContentVideo,
	3: rule.ContentAudio,
}

func anyReaderContentType(c rule.ContentType) int {
	switch c {
	case rule.ContentManga:
		return 0
	case rule.ContentVideo:
		return 2
	case rule.ContentAudio:
		return 3
	case rule.ContentNovel, rule.ContentRSS, rule.ContentNovelMore:
	}
	return 1
}

// AnyReaderConverter converts any-reader documents.
type AnyReaderConverter struct{}

// NewAnyReaderConverter returns an any-reader converter.
func NewAnyReaderConverter() *AnyReaderConverter {
	return &AnyReaderConverter{}
}

// Format reports rule.FormatAnyReader.
func (c *AnyReaderConverter) Format() rule.Format {
	return rule.FormatAnyReader
}

// Detect reports whether raw looks like an any-reader document: string id
// and name, a numeric contentType and no Legado identity keys.
func (c *AnyReaderConverter) Detect(raw map[string]any) bool {
	if _, ok := raw["id"].(string); !ok {
		return false
	}
	if _, ok := raw["name"].(string); !ok {
		return false
	}
	if _, ok := raw["contentType"].(float64); !ok {
		return false
	}
	_, hasURL := raw["bookSourceUrl"]
	_, hasName := raw["bookSourceName"]
	return !hasURL && !hasName
}

// ToUniversal decodes raw and converts it.
func (c *AnyReaderConverter) ToUniversal(raw map[string]any, opts Options) (*rule.UniversalRule, error) {
	var doc AnyReaderRule
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

// ToUniversalRule converts a typed any-reader document.
func (c *AnyReaderConverter) ToUniversalRule(doc *AnyReaderRule, opts Options) (*rule.UniversalRule, error) {
	if doc.ID == "" || doc.Name == "" {
		return nil, ErrMissingIdentity
	}

	f := newInboundCodec(rule.FormatAnyReader, opts)
	contentType, ok := anyReaderContentTypes[doc.ContentType]
	if !ok {
		contentType = rule.ContentNovel
	}

	r := &rule.UniversalRule{
		ID:          doc.ID,
		Name:        doc.Name,
		Host:        doc.Host,
		Icon:        doc.Icon,
		Author:      doc.Author,
		Group:       doc.Group,
		Sort:        doc.Sort,
		ContentType: contentType,
		UserAgent:   doc.UserAgent,
		LoadJS:      doc.LoadJS,
	}

	if doc.UseCryptoJS != nil || doc.Cookies != "" || doc.PostScript != "" || doc.ViewStyle != nil {
		r.AnyReader = &rule.AnyReaderExtra{
			UseCryptoJS: doc.UseCryptoJS,
			Cookies:     doc.Cookies,
			PostScript:  doc.PostScript,
			ViewStyle:   doc.ViewStyle,
		}
	}

	if doc.EnableSearch != nil || doc.SearchURL != "" {
		r.Search = &rule.SearchRule{
			Enabled:       f.flagIn("search.enabled", doc.EnableSearch),
			URL:           f.in("search.url", doc.SearchURL, kindURL),
			List:          f.in("search.list", doc.SearchList, kindList),
			Name:          f.in("search.name", doc.SearchName, kindExpr),
			Cover:         f.in("search.cover", doc.SearchCover, kindExpr),
			Author:        f.in("search.author", doc.SearchAuthor, kindExpr),
			Description:   f.in("search.description", doc.SearchDescription, kindExpr),
			LatestChapter: f.in("search.latestChapter", doc.SearchChapter, kindExpr),
			Tags:          f.in("search.tags", doc.SearchTags, kindExpr),
			Result:        f.in("search.result", doc.SearchResult, kindExpr),
		}
		if doc.SearchItems != "" {
			r.Search.AnyReader = &rule.GroupExtra{Items: doc.SearchItems}
		}
	}

	if doc.ChapterList != "" || doc.ChapterURL != "" {
		r.Chapter = &rule.ChapterRule{
			URL:     f.in("chapter.url", doc.ChapterURL, kindURL),
			List:    f.in("chapter.list", doc.ChapterList, kindList),
			Name:    f.in("chapter.name", doc.ChapterName, kindExpr),
			Cover:   f.in("chapter.cover", doc.ChapterCover, kindExpr),
			Time:    f.in("chapter.time", doc.ChapterTime, kindExpr),
			Result:  f.in("chapter.result", doc.ChapterResult, kindExpr),
			NextURL: f.in("chapter.nextUrl", doc.ChapterNextURL, kindExpr),
		}
		if doc.EnableMultiRoads != nil && *doc.EnableMultiRoads {
			r.Chapter.MultiRoads = &rule.MultiRoads{
				Enabled:  true,
				Roads:    f.in("chapter.multiRoads.roads", doc.ChapterRoads, kindExpr),
				RoadName: f.in("chapter.multiRoads.roadName", doc.ChapterRoadName, kindExpr),
			}
		}
		if doc.ChapterItems != "" || doc.ChapterLock != "" {
			r.Chapter.AnyReader = &rule.GroupExtra{
				Items: doc.ChapterItems,
				Lock:  f.in("chapter.anyReader.lock", doc.ChapterLock, kindExpr),
			}
		}
	}

	if doc.EnableDiscover != nil || doc.DiscoverURL != "" {
		r.Discover = &rule.DiscoverRule{
			Enabled:       f.flagIn("discover.enabled", doc.EnableDiscover),
			URL:           f.in("discover.url", doc.DiscoverURL, kindURL),
			List:          f.in("discover.list", doc.DiscoverList, kindList),
			Name:          f.in("discover.name", doc.DiscoverName, kindExpr),
			Cover:         f.in("discover.cover", doc.DiscoverCover, kindExpr),
			Author:        f.in("discover.author", doc.DiscoverAuthor, kindExpr),
			Description:   f.in("discover.description", doc.DiscoverDescription, kindExpr),
			Tags:          f.in("discover.tags", doc.DiscoverTags, kindExpr),
			LatestChapter: f.in("discover.latestChapter", doc.DiscoverChapter, kindExpr),
			Result:        f.in("discover.result", doc.DiscoverResult, kindExpr),
			NextURL:       f.in("discover.nextUrl", doc.DiscoverNextURL, kindExpr),
		}
		if doc.DiscoverItems != "" {
			r.Discover.AnyReader = &rule.GroupExtra{Items: doc.DiscoverItems}
		}
	}

	if doc.ContentItems != "" || doc.ContentURL != "" {
		r.Content = &rule.ContentRule{
			URL:     f.in("content.url", doc.ContentURL, kindURL),
			Items:   f.in("content.items", doc.ContentItems, kindExpr),
			NextURL: f.in("content.nextUrl", doc.ContentNextURL, kindExpr),
			Decoder: doc.ContentDecoder,
		}
	}

	if f.err != nil {
		return nil, f.err
	}

	now := time.Now().UnixMilli()
	r.FieldSources = f.fieldSources()
	r.Meta = &rule.Meta{
		SourceFormat: rule.FormatUniversal,
		OriginFormat: rule.FormatAnyReader,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return r, nil
}

// FromUniversal converts r and returns the generic document.
func (c *AnyReaderConverter) FromUniversal(r *rule.UniversalRule, opts Options) (map[string]any, error) {
	doc, err := c.FromUniversalRule(r, opts)
	if err != nil {
		return nil, err
	}
	out, err := encode(doc)
	if err != nil {
		return nil, err
	}
	restoreUnmodeled(out, r, rule.FormatAnyReader, anyReaderKeys)
	return out, nil
}

// FromUniversalRule converts r into a typed any-reader document. Groups
// any-reader cannot express, such as detail and login, are dropped.
func (c *AnyReaderConverter) FromUniversalRule(r *rule.UniversalRule, opts Options) (*AnyReaderRule, error) {
	if r == nil || r.ID == "" || r.Name == "" {
		return nil, ErrMissingIdentity
	}

	f := newOutboundCodec(rule.FormatAnyReader, r, opts)
	doc := &AnyReaderRule{
		ID:          anyReaderID(r.ID),
		Name:        r.Name,
		Host:        r.Host,
		Icon:        r.Icon,
		ContentType: anyReaderContentType(r.ContentType),
		Sort:        r.Sort,
		Author:      r.Author,
		UserAgent:   r.UserAgent,
		LoadJS:      r.LoadJS,
		Group:       r.Group,
	}

	if ar := r.AnyReader; ar != nil {
		doc.UseCryptoJS = ar.UseCryptoJS
		doc.Cookies = ar.Cookies
		doc.PostScript = ar.PostScript
		doc.ViewStyle = ar.ViewStyle
	}

	if s := r.Search; s != nil {
		doc.EnableSearch = f.flagOut("search.enabled", s.Enabled)
		doc.SearchURL = f.out("search.url", s.URL, kindURL)
		doc.SearchList = f.out("search.list", s.List, kindList)
		doc.SearchName = f.out("search.name", s.Name, kindExpr)
		doc.SearchCover = f.out("search.cover", s.Cover, kindExpr)
		doc.SearchAuthor = f.out("search.author", s.Author, kindExpr)
		doc.SearchDescription = f.out("search.description", s.Description, kindExpr)
		doc.SearchChapter = f.out("search.latestChapter", s.LatestChapter, kindExpr)
		doc.SearchTags = f.out("search.tags", s.Tags, kindExpr)
		doc.SearchResult = f.out("search.result", s.Result, kindExpr)
		if s.AnyReader != nil {
			doc.SearchItems = s.AnyReader.Items
		}
	}

	if ch := r.Chapter; ch != nil {
		doc.ChapterURL = f.out("chapter.url", ch.URL, kindURL)
		doc.ChapterList = f.out("chapter.list", ch.List, kindList)
		doc.ChapterName = f.out("chapter.name", ch.Name, kindExpr)
		doc.ChapterCover = f.out("chapter.cover", ch.Cover, kindExpr)
		doc.ChapterTime = f.out("chapter.time", ch.Time, kindExpr)
		doc.ChapterResult = f.out("chapter.result", ch.Result, kindExpr)
		doc.ChapterNextURL = f.out("chapter.nextUrl", ch.NextURL, kindExpr)
		if mr := ch.MultiRoads; mr != nil && mr.Enabled {
			doc.EnableMultiRoads = boolPtr(true)
			doc.ChapterRoads = f.out("chapter.multiRoads.roads", mr.Roads, kindExpr)
			doc.ChapterRoadName = f.out("chapter.multiRoads.roadName", mr.RoadName, kindExpr)
		}
		if ch.AnyReader != nil {
			doc.ChapterItems = ch.AnyReader.Items
			doc.ChapterLock = f.out("chapter.anyReader.lock", ch.AnyReader.Lock, kindExpr)
		}
	}

	if d := r.Discover; d != nil {
		doc.EnableDiscover = f.flagOut("discover.enabled", d.Enabled)
		doc.DiscoverURL = f.out("discover.url", d.URL, kindURL)
		doc.DiscoverList = f.out("discover.list", d.List, kindList)
		doc.DiscoverName = f.out("discover.name", d.Name, kindExpr)
		doc.DiscoverCover = f.out("discover.cover", d.Cover, kindExpr)
		doc.DiscoverAuthor = f.out("discover.author", d.Author, kindExpr)
		doc.DiscoverDescription = f.out("discover.description", d.Description, kindExpr)
		doc.DiscoverTags = f.out("discover.tags", d.Tags, kindExpr)
		doc.DiscoverChapter = f.out("discover.latestChapter", d.LatestChapter, kindExpr)
		doc.DiscoverResult = f.out("discover.result", d.Result, kindExpr)
		doc.DiscoverNextURL = f.out("discover.nextUrl", d.NextURL, kindExpr)
		if d.AnyReader != nil {
			doc.DiscoverItems = d.AnyReader.Items
		}
	}

	if ct := r.Content; ct != nil {
		doc.ContentURL = f.out("content.url", ct.URL, kindURL)
		doc.ContentItems = f.out("content.items", ct.Items, kindExpr)
		doc.ContentNextURL = f.out("content.nextUrl", ct.NextURL, kindExpr)
		doc.ContentDecoder = ct.Decoder
	}

	return doc, nil
}

// anyReaderID keeps UUID ids and derives a stable UUID from anything
// else, such as a Legado source URL.
func anyReaderID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

// Validate checks the structural requirements of an any-reader document.
func (c *AnyReaderConverter) Validate(raw map[string]any) ValidationResult {
	result := newValidationResult()

	var doc AnyReaderRule
	coerced, err := decode(raw, &doc)
	if err != nil {
		result.addError("", err.Error(), CodeRequiredField)
		return result
	}
	for _, issue := range coerced {
		result.addWarning(issue.Field, issue.Message, issue.Code)
	}

	if doc.ID == "" {
		result.addError("id", "rule id is required", CodeRequiredField)
	}
	if doc.Name == "" {
		result.addError("name", "rule name is required", CodeRequiredField)
	}
	if doc.Host == "" {
		result.addWarning("host", "host is recommended", CodeRecommendedField)
	}

	if doc.EnableSearch != nil && *doc.EnableSearch {
		if doc.SearchURL == "" {
			result.addError("searchUrl", "searchUrl is required when search is enabled", CodeRequiredField)
		}
		if doc.SearchList == "" {
			result.addWarning("searchList", "searchList is recommended when search is enabled", CodeRecommendedField)
		}
	}
	if doc.EnableDiscover != nil && *doc.EnableDiscover && doc.DiscoverURL == "" {
		result.addError("discoverUrl", "discoverUrl is required when discover is enabled", CodeRequiredField)
	}

	return result
}
