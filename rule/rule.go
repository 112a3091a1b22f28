// Package rule defines the canonical book-source document shared by every
// dialect converter.
package rule

import (
	"errors"
	"strings"
)

// ErrInvalidFormat is returned when a format name is not recognized.
var ErrInvalidFormat = errors.New("format must be any-reader, legado, or universal")

// Format identifies a rule document dialect.
type Format string

const (
	FormatAnyReader Format = "any-reader"
	FormatLegado    Format = "legado"
	FormatUniversal Format = "universal"
	FormatUnknown   Format = "unknown"
)

// ParseFormat resolves a user-supplied format name. Common spellings such
// as "anyreader" and "Legado" are accepted.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "any-reader", "anyreader", "any_reader", "ar":
		return FormatAnyReader, nil
	case "legado":
		return FormatLegado, nil
	case "universal", "":
		return FormatUniversal, nil
	}
	return FormatUnknown, ErrInvalidFormat
}

// IsDialect reports whether f is one of the two third-party dialects.
func (f Format) IsDialect() bool {
	return f == FormatAnyReader || f == FormatLegado
}

// ContentType classifies what a source serves.
type ContentType string

const (
	ContentNovel     ContentType = "novel"
	ContentManga     ContentType = "manga"
	ContentVideo     ContentType = "video"
	ContentAudio     ContentType = "audio"
	ContentRSS       ContentType = "rss"
	ContentNovelMore ContentType = "novelmore"
)

// ContentTypes lists every content type in schema order.
var ContentTypes = []ContentType{
	ContentNovel, ContentManga, ContentVideo, ContentAudio, ContentRSS, ContentNovelMore,
}

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	for _, known := range ContentTypes {
		if c == known {
			return true
		}
	}
	return false
}

// UniversalRule is the canonical book-source document. Group pointers are
// nil when the source has no such capability. Expression fields hold
// normalized expression text, not parsed trees.
type UniversalRule struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Host        string            `json:"host"`
	Icon        string            `json:"icon,omitempty"`
	Author      string            `json:"author,omitempty"`
	Group       string            `json:"group,omitempty"`
	Sort        *int              `json:"sort,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Comment     string            `json:"comment,omitempty"`
	JSLib       string            `json:"jsLib,omitempty"`
	ContentType ContentType       `json:"contentType"`
	UserAgent   string            `json:"userAgent,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	LoadJS      string            `json:"loadJs,omitempty"`

	Search   *SearchRule   `json:"search,omitempty"`
	Detail   *DetailRule   `json:"detail,omitempty"`
	Chapter  *ChapterRule  `json:"chapter,omitempty"`
	Discover *DiscoverRule `json:"discover,omitempty"`
	Content  *ContentRule  `json:"content,omitempty"`
	Login    *LoginRule    `json:"login,omitempty"`

	AnyReader *AnyReaderExtra `json:"anyReader,omitempty"`
	Legado    *LegadoExtra    `json:"legado,omitempty"`

	FieldSources map[string]string `json:"_fieldSources,omitempty"`
	Meta         *Meta             `json:"_meta,omitempty"`
}

// SearchRule describes the search page.
type SearchRule struct {
	Enabled       bool        `json:"enabled"`
	URL           string      `json:"url"`
	List          string      `json:"list"`
	Name          string      `json:"name"`
	Cover         string      `json:"cover,omitempty"`
	Author        string      `json:"author,omitempty"`
	Description   string      `json:"description,omitempty"`
	LatestChapter string      `json:"latestChapter,omitempty"`
	WordCount     string      `json:"wordCount,omitempty"`
	Tags          string      `json:"tags,omitempty"`
	Result        string      `json:"result"`
	AnyReader     *GroupExtra `json:"anyReader,omitempty"`
}

// DetailRule describes the book detail page.
type DetailRule struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url,omitempty"`
	Init          string `json:"init,omitempty"`
	Name          string `json:"name,omitempty"`
	Author        string `json:"author,omitempty"`
	Cover         string `json:"cover,omitempty"`
	Description   string `json:"description,omitempty"`
	LatestChapter string `json:"latestChapter,omitempty"`
	WordCount     string `json:"wordCount,omitempty"`
	Tags          string `json:"tags,omitempty"`
	TocURL        string `json:"tocUrl,omitempty"`
	CanRename     *bool  `json:"canRename,omitempty"`
}

// ChapterRule describes the table of contents.
type ChapterRule struct {
	URL        string      `json:"url,omitempty"`
	List       string      `json:"list"`
	Name       string      `json:"name"`
	Cover      string      `json:"cover,omitempty"`
	Time       string      `json:"time,omitempty"`
	Result     string      `json:"result"`
	NextURL    string      `json:"nextUrl,omitempty"`
	IsVip      string      `json:"isVip,omitempty"`
	IsPay      string      `json:"isPay,omitempty"`
	MultiRoads *MultiRoads `json:"multiRoads,omitempty"`
	AnyReader  *GroupExtra `json:"anyReader,omitempty"`
}

// MultiRoads configures sources that publish several mirrors of a chapter
// list.
type MultiRoads struct {
	Enabled  bool   `json:"enabled"`
	Roads    string `json:"roads,omitempty"`
	RoadName string `json:"roadName,omitempty"`
}

// DiscoverRule describes category/explore pages.
type DiscoverRule struct {
	Enabled       bool        `json:"enabled"`
	URL           string      `json:"url"`
	List          string      `json:"list"`
	Name          string      `json:"name"`
	Cover         string      `json:"cover,omitempty"`
	Author        string      `json:"author,omitempty"`
	Description   string      `json:"description,omitempty"`
	Tags          string      `json:"tags,omitempty"`
	LatestChapter string      `json:"latestChapter,omitempty"`
	WordCount     string      `json:"wordCount,omitempty"`
	Result        string      `json:"result"`
	NextURL       string      `json:"nextUrl,omitempty"`
	AnyReader     *GroupExtra `json:"anyReader,omitempty"`
}

// ContentRule describes the chapter body page.
type ContentRule struct {
	URL          string         `json:"url,omitempty"`
	Items        string         `json:"items"`
	NextURL      string         `json:"nextUrl,omitempty"`
	Decoder      string         `json:"decoder,omitempty"`
	PayAction    string         `json:"payAction,omitempty"`
	SourceRegex  string         `json:"sourceRegex,omitempty"`
	ReplaceRules []ReplaceRule  `json:"replaceRules,omitempty"`
	Legado       *ContentLegado `json:"legado,omitempty"`
}

// ReplaceRule is a body-cleanup substitution.
type ReplaceRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	IsRegex     bool   `json:"isRegex,omitempty"`
}

// LoginRule describes how a source authenticates.
type LoginRule struct {
	URL     string `json:"url,omitempty"`
	CheckJS string `json:"checkJs,omitempty"`
}

// GroupExtra holds any-reader fields that have no canonical counterpart
// inside a sub-rule group.
type GroupExtra struct {
	Items string `json:"items,omitempty"`
	Lock  string `json:"lock,omitempty"`
}

// AnyReaderExtra holds any-reader root fields with no canonical
// counterpart.
type AnyReaderExtra struct {
	UseCryptoJS *bool  `json:"useCryptoJS,omitempty"`
	Cookies     string `json:"cookies,omitempty"`
	PostScript  string `json:"postScript,omitempty"`
	ViewStyle   *int   `json:"viewStyle,omitempty"`
}

// LegadoExtra holds Legado root fields with no canonical counterpart.
type LegadoExtra struct {
	EnabledCookieJar *bool  `json:"enabledCookieJar,omitempty"`
	Weight           *int   `json:"weight,omitempty"`
	RespondTime      *int   `json:"respondTime,omitempty"`
	LoginUI          string `json:"loginUi,omitempty"`
	BookURLPattern   string `json:"bookUrlPattern,omitempty"`
	CustomButton     *bool  `json:"customButton,omitempty"`
	EventListener    *bool  `json:"eventListener,omitempty"`
}

// ContentLegado holds Legado body-page fields with no canonical
// counterpart.
type ContentLegado struct {
	WebJS      string `json:"webJs,omitempty"`
	ImageStyle string `json:"imageStyle,omitempty"`
}

// Meta records provenance. SourceFormat is always "universal" so that a
// serialized rule is recognized as canonical; OriginFormat names the
// dialect it was converted from.
type Meta struct {
	SourceFormat Format         `json:"sourceFormat"`
	OriginFormat Format         `json:"originFormat,omitempty"`
	Version      string         `json:"version,omitempty"`
	CreatedAt    int64          `json:"createdAt,omitempty"`
	UpdatedAt    int64          `json:"updatedAt,omitempty"`
	OriginalData map[string]any `json:"originalData,omitempty"`
}
