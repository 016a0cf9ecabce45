package video_acquirer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/alanbriolat/video-acquirer/generic"
)

// Codec preferences used when building format selectors. H.264 video with AAC audio in an mp4 container plays
// almost everywhere; AV1 is not decodable by a significant share of playback devices, so it is never chosen over
// an equally available alternative.
const (
	PreferredVideoCodec = "avc1"
	PreferredAudioCodec = "mp4a"
	PreferredContainer  = "mp4"
	DisfavoredCodec     = "av01"
)

// A Strategy is a named client identity (one or more player clients) presented to the extraction backend.
type Strategy struct {
	Name    string
	Clients []string
	// SkipWebpage avoids the expensive preliminary watch-page fetch.
	SkipWebpage bool
}

func (s Strategy) String() string {
	return fmt.Sprintf("%s[%s]", s.Name, strings.Join(s.Clients, ","))
}

// StrategyChain is the ordered list of strategies tried for each request.
type StrategyChain []Strategy

// DefaultStrategies is tried left to right; blocks correlate with client identity, so each entry presents a
// different one.
var DefaultStrategies = StrategyChain{
	{Name: "web", Clients: []string{"web"}},
	{Name: "mobile", Clients: []string{"android", "ios"}, SkipWebpage: true},
	{Name: "tv", Clients: []string{"tv_embedded"}, SkipWebpage: true},
	{Name: "mweb", Clients: []string{"mweb"}},
}

// Names returns the strategy names in order.
func (c StrategyChain) Names() []string {
	return lo.Map(c, func(s Strategy, _ int) string { return s.Name })
}

// Select returns the strategies named, in the order named. Unknown names are an error; an empty list of names
// returns the chain unchanged.
func (c StrategyChain) Select(names ...string) (StrategyChain, error) {
	if len(names) == 0 {
		return c, nil
	}
	if unknown := generic.NewSet(names...).Difference(generic.NewSet(c.Names()...)); unknown.Count() > 0 {
		unknownNames := unknown.ToSlice()
		sort.Strings(unknownNames)
		return nil, fmt.Errorf("unknown strategies: %s", strings.Join(unknownNames, ", "))
	}
	byName := lo.KeyBy(c, func(s Strategy) string { return s.Name })
	return lo.Map(lo.Uniq(names), func(name string, _ int) Strategy { return byName[name] }), nil
}

// FormatSelector builds the format selector expression for a quality: either the descending-preference chain
// for QualityBest, or the requested encoding id paired with audio fallbacks.
func FormatSelector(quality string) string {
	if quality == "" || strings.EqualFold(quality, QualityBest) {
		return strings.Join([]string{
			fmt.Sprintf("bv*[vcodec^=%s][ext=%s]+ba[acodec^=%s]", PreferredVideoCodec, PreferredContainer, PreferredAudioCodec),
			fmt.Sprintf("bv*[vcodec^=%s]+ba[acodec^=%s]", PreferredVideoCodec, PreferredAudioCodec),
			fmt.Sprintf("bv*[vcodec!^=%s][ext=%s]+ba", DisfavoredCodec, PreferredContainer),
			fmt.Sprintf("b[vcodec!^=%s][ext=%s]", DisfavoredCodec, PreferredContainer),
			fmt.Sprintf("bv*[vcodec!^=%s]+ba", DisfavoredCodec),
			fmt.Sprintf("b[vcodec!^=%s]", DisfavoredCodec),
		}, "/")
	}
	return strings.Join([]string{
		fmt.Sprintf("%s+ba[acodec^=%s]", quality, PreferredAudioCodec),
		fmt.Sprintf("%s+ba", quality),
		quality,
	}, "/")
}

// Compatible reports whether any of the available encodings can satisfy the quality's constraints.
func Compatible(encodings []Encoding, quality string) bool {
	if quality == "" || strings.EqualFold(quality, QualityBest) {
		return lo.ContainsBy(encodings, func(e Encoding) bool {
			return e.HasVideo() && !strings.HasPrefix(e.VideoCodec, DisfavoredCodec)
		})
	}
	return lo.ContainsBy(encodings, func(e Encoding) bool { return e.ID == quality })
}
