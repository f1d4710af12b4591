package instagram

import "fmt"

// MediaType is the Graph API media_type of a post.
type MediaType string

const (
	MediaTypeImage    MediaType = "IMAGE"
	MediaTypeVideo    MediaType = "VIDEO"
	MediaTypeCarousel MediaType = "CAROUSEL_ALBUM"
)

// UserMetrics are the account-level insight metrics.
var UserMetrics = []string{
	"reach",
	"follower_count",
	"website_clicks",
	"profile_views",
	"online_followers",
	"accounts_engaged",
	"total_interactions",
	"likes",
	"engaged_audience_demographics",
	"reached_audience_demographics",
	"follower_demographics",
	"follows_and_unfollows",
	"profile_links_taps",
}

// commonMediaMetrics apply to every media type.
var commonMediaMetrics = []string{
	"shares",
	"comments",
	"likes",
	"saved",
	"total_interactions",
	"reach",
	"views",
}

var mediaMetrics = map[MediaType][]string{
	MediaTypeImage:    commonMediaMetrics,
	MediaTypeCarousel: append(append([]string{}, commonMediaMetrics...), "impressions", "replies"),
	MediaTypeVideo:    append(append([]string{}, commonMediaMetrics...), "ig_reels_video_view_total_time", "ig_reels_avg_watch_time"),
}

// ParseMediaType validates a media_type query value. Empty means IMAGE.
func ParseMediaType(s string) (MediaType, error) {
	if s == "" {
		return MediaTypeImage, nil
	}
	mt := MediaType(s)
	if _, ok := mediaMetrics[mt]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMediaType, s)
	}
	return mt, nil
}

// Metrics returns the insight metrics requested for this media type.
func (m MediaType) Metrics() []string {
	return mediaMetrics[m]
}
