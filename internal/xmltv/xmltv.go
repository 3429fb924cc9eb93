// Package xmltv holds the in-memory model for an XMLTV guide document.
// Struct field order mirrors the programme element order required by the
// XMLTV DTD, so a marshalled document is always valid regardless of which
// fields the enrichment pass added.
package xmltv

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const timeFormat = "20060102150405"

// TV is the root element of an XMLTV document.
type TV struct {
	XMLName           xml.Name     `xml:"tv"`
	Date              string       `xml:"date,attr,omitempty"`
	SourceInfoName    string       `xml:"source-info-name,attr,omitempty"`
	SourceInfoURL     string       `xml:"source-info-url,attr,omitempty"`
	GeneratorInfoName string       `xml:"generator-info-name,attr,omitempty"`
	GeneratorInfoURL  string       `xml:"generator-info-url,attr,omitempty"`
	Channels          []Channel    `xml:"channel"`
	Programmes        []*Programme `xml:"programme"`
}

// Channel is a channel definition referenced by programmes.
type Channel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []Text   `xml:"display-name"`
	Icons       []Icon   `xml:"icon"`
	URLs        []string `xml:"url"`
}

// Text is a language-tagged element value.
type Text struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Icon references an image by URL or file path.
type Icon struct {
	Src    string `xml:"src,attr"`
	Width  int    `xml:"width,attr,omitempty"`
	Height int    `xml:"height,attr,omitempty"`
}

// Length is a programme duration with its unit.
type Length struct {
	Units string `xml:"units,attr"`
	Value string `xml:",chardata"`
}

// EpisodeNum carries episode numbering in one of the XMLTV systems
// (xmltv_ns, onscreen, dd_progid, ...).
type EpisodeNum struct {
	System string `xml:"system,attr,omitempty"`
	Value  string `xml:",chardata"`
}

// Video describes the video properties of a showing.
type Video struct {
	Present string `xml:"present,omitempty"`
	Colour  string `xml:"colour,omitempty"`
	Aspect  string `xml:"aspect,omitempty"`
	Quality string `xml:"quality,omitempty"`
}

// Audio describes the audio properties of a showing.
type Audio struct {
	Present string `xml:"present,omitempty"`
	Stereo  string `xml:"stereo,omitempty"`
}

// PreviouslyShown marks a repeat showing.
type PreviouslyShown struct {
	Start   string `xml:"start,attr,omitempty"`
	Channel string `xml:"channel,attr,omitempty"`
}

// Subtitles describes closed captioning or subtitling.
type Subtitles struct {
	Type     string `xml:"type,attr,omitempty"`
	Language *Text  `xml:"language,omitempty"`
}

// Rating is an advisory rating from a named system (e.g. MPAA).
type Rating struct {
	System string `xml:"system,attr,omitempty"`
	Value  string `xml:"value"`
	Icons  []Icon `xml:"icon"`
}

// StarRating is a quality rating such as "8.7/10".
type StarRating struct {
	System string `xml:"system,attr,omitempty"`
	Value  string `xml:"value"`
}

// Programme is one scheduled showing. Fields appear in DTD order.
type Programme struct {
	Start           string           `xml:"start,attr"`
	Stop            string           `xml:"stop,attr,omitempty"`
	Channel         string           `xml:"channel,attr"`
	Titles          []Text           `xml:"title"`
	SubTitles       []Text           `xml:"sub-title"`
	Descs           []Text           `xml:"desc"`
	Credits         *Credits         `xml:"credits"`
	Date            string           `xml:"date,omitempty"`
	Categories      []Text           `xml:"category"`
	Language        *Text            `xml:"language"`
	OrigLanguage    *Text            `xml:"orig-language"`
	Length          *Length          `xml:"length"`
	Icons           []Icon           `xml:"icon"`
	URLs            []string         `xml:"url"`
	Countries       []Text           `xml:"country"`
	EpisodeNums     []EpisodeNum     `xml:"episode-num"`
	Video           *Video           `xml:"video"`
	Audio           *Audio           `xml:"audio"`
	PreviouslyShown *PreviouslyShown `xml:"previously-shown"`
	Premiere        *Text            `xml:"premiere"`
	LastChance      *Text            `xml:"last-chance"`
	New             *struct{}        `xml:"new"`
	Subtitles       []Subtitles      `xml:"subtitles"`
	Ratings         []Rating         `xml:"rating"`
	StarRatings     []StarRating     `xml:"star-rating"`
}

// Credits lists the people involved in a programme.
type Credits struct {
	Directors  []string `xml:"director"`
	Actors     []string `xml:"actor"`
	Writers    []string `xml:"writer"`
	Presenters []string `xml:"presenter"`
	Producers  []string `xml:"producer"`
}

// Title returns the first title value, or "".
func (p *Programme) Title() string {
	if len(p.Titles) == 0 {
		return ""
	}
	return p.Titles[0].Value
}

// Desc returns the first description value, or "".
func (p *Programme) Desc() string {
	if len(p.Descs) == 0 {
		return ""
	}
	return p.Descs[0].Value
}

// SetDesc replaces the first description, creating it when absent.
func (p *Programme) SetDesc(text string) {
	if len(p.Descs) == 0 {
		p.Descs = append(p.Descs, Text{Lang: "en", Value: text})
		return
	}
	p.Descs[0].Value = text
}

// SubTitle returns the first sub-title value, or "".
func (p *Programme) SubTitle() string {
	if len(p.SubTitles) == 0 {
		return ""
	}
	return p.SubTitles[0].Value
}

// SetSubTitle replaces the first sub-title, creating it when absent.
func (p *Programme) SetSubTitle(text string) {
	if len(p.SubTitles) == 0 {
		p.SubTitles = append(p.SubTitles, Text{Lang: "en", Value: text})
		return
	}
	p.SubTitles[0].Value = text
}

// HasCategory reports whether the programme already carries the category,
// compared case-insensitively.
func (p *Programme) HasCategory(name string) bool {
	for _, c := range p.Categories {
		if strings.EqualFold(c.Value, name) {
			return true
		}
	}
	return false
}

// AddCategory appends a category unless an equal one (case-insensitive)
// is already present.
func (p *Programme) AddCategory(name string) {
	if name == "" || p.HasCategory(name) {
		return
	}
	p.Categories = append(p.Categories, Text{Lang: "en", Value: name})
}

// SetIcon replaces all icon references with a single src.
func (p *Programme) SetIcon(src string) {
	p.Icons = []Icon{{Src: src}}
}

// SetLength replaces the length element with a minute count.
func (p *Programme) SetLength(minutes int) {
	p.Length = &Length{Units: "minutes", Value: strconv.Itoa(minutes)}
}

// SetStarRating replaces any star-rating with value on the provider's
// 10-point scale, rendered as "N.N/10".
func (p *Programme) SetStarRating(value string) {
	p.StarRatings = []StarRating{{Value: value}}
}

// EpisodeNumXMLTV returns the one-based season and episode parsed from an
// xmltv_ns episode-num element. xmltv_ns numbering is zero-based on the wire.
func (p *Programme) EpisodeNumXMLTV() (season, episode int, ok bool) {
	for _, en := range p.EpisodeNums {
		if en.System != "xmltv_ns" {
			continue
		}
		parts := strings.Split(en.Value, ".")
		if len(parts) < 2 {
			continue
		}
		s, sOK := atoiPart(parts[0])
		e, eOK := atoiPart(parts[1])
		if !sOK || !eOK {
			continue
		}
		return s + 1, e + 1, true
	}
	return 0, 0, false
}

// AddEpisodeNumXMLTV appends an xmltv_ns episode-num for the given one-based
// season and episode.
func (p *Programme) AddEpisodeNumXMLTV(season, episode int) {
	p.EpisodeNums = append(p.EpisodeNums, EpisodeNum{
		System: "xmltv_ns",
		Value:  fmt.Sprintf("%d.%d.0", season-1, episode-1),
	})
}

// Duration returns the showing length derived from the start/stop stamps.
// Timezone suffixes are ignored; the result only feeds heuristics.
func (p *Programme) Duration() (time.Duration, bool) {
	start, okStart := parseStamp(p.Start)
	stop, okStop := parseStamp(p.Stop)
	if !okStart || !okStop || !stop.After(start) {
		return 0, false
	}
	return stop.Sub(start), true
}

func parseStamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	if len(s) > len(timeFormat) {
		s = s[:len(timeFormat)]
	}
	t, err := time.Parse(timeFormat[:len(s)], s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func atoiPart(s string) (int, bool) {
	s = strings.TrimSpace(s)
	// xmltv_ns parts may carry a "total" suffix like "4/10".
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
