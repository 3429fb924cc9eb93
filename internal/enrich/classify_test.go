package enrich

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lepresidente/xmltv-enrich/internal/provider"
	"github.com/lepresidente/xmltv-enrich/internal/xmltv"
)

func programme(title, start, stop string) *xmltv.Programme {
	return &xmltv.Programme{
		Start:   start,
		Stop:    stop,
		Channel: "test.ch",
		Titles:  []xmltv.Text{{Lang: "en", Value: title}},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		setup func() *xmltv.Programme
		want  Classification
	}{
		{
			name: "episode_num_wins",
			setup: func() *xmltv.Programme {
				p := programme("Mysteries", "20260115200000", "20260115204500")
				p.AddEpisodeNumXMLTV(2, 4)
				return p
			},
			want: Classification{Kind: provider.KindEpisode, Season: 2, Episode: 4, Eligible: true},
		},
		{
			name: "episode_num_beats_movie_category",
			setup: func() *xmltv.Programme {
				p := programme("Mysteries", "20260115200000", "20260115204500")
				p.AddEpisodeNumXMLTV(1, 1)
				p.AddCategory("movie")
				return p
			},
			want: Classification{Kind: provider.KindEpisode, Season: 1, Episode: 1, Eligible: true},
		},
		{
			name: "title_episode_hint",
			setup: func() *xmltv.Programme {
				return programme("All New Mysteries S01E04", "20260115200000", "20260115204500")
			},
			want: Classification{Kind: provider.KindEpisode, Season: 1, Episode: 4, Eligible: true},
		},
		{
			name: "long_episode_ineligible",
			setup: func() *xmltv.Programme {
				p := programme("Mysteries", "20260115200000", "20260115220000")
				p.AddEpisodeNumXMLTV(2, 4)
				return p
			},
			want: Classification{Kind: provider.KindEpisode, Season: 2, Episode: 4, Eligible: false},
		},
		{
			name: "movie_category_ignores_duration",
			setup: func() *xmltv.Programme {
				p := programme("The Matrix", "20260115200000", "20260115203000")
				p.AddCategory("Film")
				return p
			},
			want: Classification{Kind: provider.KindMovie, Eligible: true},
		},
		{
			name: "feature_length_slot_is_movie",
			setup: func() *xmltv.Programme {
				return programme("The Matrix", "20260115200000", "20260115220000")
			},
			want: Classification{Kind: provider.KindMovie, Eligible: true},
		},
		{
			name: "marathon_slot_not_movie",
			setup: func() *xmltv.Programme {
				return programme("Election Night", "20260115200000", "20260116030000")
			},
			want: Classification{Kind: provider.KindSeries, Eligible: false},
		},
		{
			name: "short_slot_is_series",
			setup: func() *xmltv.Programme {
				return programme("The News", "20260115200000", "20260115203000")
			},
			want: Classification{Kind: provider.KindSeries, Eligible: true},
		},
		{
			name: "exactly_ninety_minutes_is_series",
			setup: func() *xmltv.Programme {
				return programme("Panel Show", "20260115200000", "20260115213000")
			},
			want: Classification{Kind: provider.KindSeries, Eligible: true},
		},
		{
			name: "missing_stop_skipped",
			setup: func() *xmltv.Programme {
				return programme("Unknown", "20260115200000", "")
			},
			want: Classification{Kind: provider.KindSeries, Eligible: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.setup())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
