package enrich

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lepresidente/xmltv-enrich/internal/provider"
	"github.com/lepresidente/xmltv-enrich/internal/xmltv"
)

var (
	// Trailing HD marker in a description, e.g. "... in HD." or "... (HD)".
	hdMarkerRe = regexp.MustCompile(`(?i)[\s\-]*(?:\(hd\)|hd\.?)$`)

	// Episode numbering hidden in prose, e.g. "S2 Ep4" or "Season 2, Episode 4".
	proseEpisodeRe = regexp.MustCompile(`(?i)\bs(?:eason)?\s*(\d{1,2})[,.]?\s*ep(?:isode)?\.?\s*(\d{1,3})\b`)

	// Season/episode packed into a dd_progid value, e.g. "2Ep14".
	progidEpisodeRe = regexp.MustCompile(`(?i)(\d{1,2})\s?ep\s?(\d{1,3})`)
)

// Leading episode-title forms inside a description. Tried in order; the
// first match splits the description into sub-title and remainder.
var subtitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^'([^']{2,60})'\.\s*(.+)`),
	regexp.MustCompile(`^"([^"]{2,60})"\.\s*(.+)`),
	regexp.MustCompile(`^([^.:]{2,60}):\s+(.+)`),
}

// FlagHD strips a trailing HD note from the description and records the
// quality in the video element instead, where players expect it.
func FlagHD(p *xmltv.Programme) {
	desc := p.Desc()
	if desc == "" {
		return
	}
	m := hdMarkerRe.FindString(desc)
	if m == "" {
		return
	}
	p.SetDesc(strings.TrimSpace(desc[:len(desc)-len(m)]))
	if p.Video == nil {
		p.Video = &xmltv.Video{Present: "yes", Aspect: "16:9"}
	}
	p.Video.Quality = "HDTV"
}

// ExtractSubtitle promotes an episode title embedded at the start of the
// description into the sub-title element. Entries that already carry a
// sub-title are left alone, which also makes repeated runs a no-op.
func ExtractSubtitle(p *xmltv.Programme) {
	if p.SubTitle() != "" {
		return
	}
	desc := p.Desc()
	if desc == "" {
		return
	}
	for _, re := range subtitlePatterns {
		if m := re.FindStringSubmatch(desc); m != nil {
			p.SetSubTitle(strings.TrimSpace(m[1]))
			p.SetDesc(strings.TrimSpace(m[2]))
			return
		}
	}
}

// LiftEpisodeNumbers adds an xmltv_ns episode-num when the numbering only
// exists as prose in the description or sub-title, or packed into a
// dd_progid or onscreen element.
func LiftEpisodeNumbers(p *xmltv.Programme) {
	if _, _, ok := p.EpisodeNumXMLTV(); ok {
		return
	}

	for _, s := range []string{p.Desc(), p.SubTitle()} {
		if addLiftedEpisode(p, proseEpisodeRe.FindStringSubmatch(s)) {
			return
		}
	}
	for _, en := range p.EpisodeNums {
		var m []string
		switch en.System {
		case "dd_progid":
			m = progidEpisodeRe.FindStringSubmatch(en.Value)
		case "onscreen", "":
			m = proseEpisodeRe.FindStringSubmatch(en.Value)
		}
		if addLiftedEpisode(p, m) {
			return
		}
	}
}

func addLiftedEpisode(p *xmltv.Programme, m []string) bool {
	if m == nil {
		return false
	}
	season, _ := strconv.Atoi(m[1])
	episode, _ := strconv.Atoi(m[2])
	if season < 1 || episode < 1 {
		return false
	}
	p.AddEpisodeNumXMLTV(season, episode)
	return true
}

// ApplyMovie merges a movie record into the programme. Only fields the
// record actually supplies overwrite the original entry.
func ApplyMovie(p *xmltv.Programme, rec *provider.Record, iconPath string) {
	if rec.Overview != "" {
		p.SetDesc(rec.Overview)
	}
	if rec.Rating > 0 {
		p.SetStarRating(formatRating(rec.Rating))
	}
	for _, g := range rec.Genres {
		p.AddCategory(g)
	}
	p.AddCategory("movie")
	if rec.Runtime > 0 {
		p.SetLength(rec.Runtime)
	}
	if rec.Year != "" && p.Date == "" {
		p.Date = rec.Year
	}
	if iconPath != "" {
		p.SetIcon(iconPath)
	}
}

// ApplySeries merges a series record into the programme.
func ApplySeries(p *xmltv.Programme, rec *provider.Record, iconPath string) {
	if rec.Overview != "" {
		p.SetDesc(rec.Overview)
	}
	if rec.Rating > 0 {
		p.SetStarRating(formatRating(rec.Rating))
	}
	for _, g := range rec.Genres {
		p.AddCategory(g)
	}
	if iconPath != "" {
		p.SetIcon(iconPath)
	}
}

// ApplyEpisode merges a numbered episode into the programme, falling back
// to series-level fields where the episode record is sparse. ep may be nil
// when the provider knows the series but not this episode.
func ApplyEpisode(p *xmltv.Programme, series, ep *provider.Record, iconPath string) {
	if ep != nil {
		if ep.EpisodeName != "" {
			p.SetSubTitle(ep.EpisodeName)
		}
		if ep.Overview != "" {
			p.SetDesc(ep.Overview)
		}
	}

	rating := series.Rating
	if ep != nil && ep.Rating > 0 {
		rating = ep.Rating
	}
	if rating > 0 {
		p.SetStarRating(formatRating(rating))
	}

	for _, g := range series.Genres {
		p.AddCategory(g)
	}
	if iconPath != "" {
		p.SetIcon(iconPath)
	}
}

func formatRating(r float32) string {
	return fmt.Sprintf("%.1f/10", r)
}
