package video_acquirer

import (
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestDefaultStrategies(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal([]string{"web", "mobile", "tv", "mweb"}, DefaultStrategies.Names())
	assert.Equal("mobile[android,ios]", DefaultStrategies[1].String())
	assert.False(DefaultStrategies[0].SkipWebpage)
	assert.True(DefaultStrategies[1].SkipWebpage)
	assert.True(DefaultStrategies[2].SkipWebpage)
}

func TestStrategyChain_Select(t *testing.T) {
	assert := assert_.New(t)

	chain, err := DefaultStrategies.Select()
	assert.NoError(err)
	assert.Equal(DefaultStrategies, chain)

	chain, err = DefaultStrategies.Select("tv", "web", "tv")
	assert.NoError(err)
	assert.Equal([]string{"tv", "web"}, chain.Names())

	_, err = DefaultStrategies.Select("web", "desktop", "smart-tv")
	assert.EqualError(err, "unknown strategies: desktop, smart-tv")
}

func TestFormatSelector_Best(t *testing.T) {
	assert := assert_.New(t)

	selector := FormatSelector(QualityBest)
	assert.Equal(FormatSelector(""), selector)
	parts := strings.Split(selector, "/")
	assert.Equal([]string{
		"bv*[vcodec^=avc1][ext=mp4]+ba[acodec^=mp4a]",
		"bv*[vcodec^=avc1]+ba[acodec^=mp4a]",
		"bv*[vcodec!^=av01][ext=mp4]+ba",
		"b[vcodec!^=av01][ext=mp4]",
		"bv*[vcodec!^=av01]+ba",
		"b[vcodec!^=av01]",
	}, parts)
	// AV1 is only ever excluded, never selected for
	for _, part := range parts {
		assert.NotContains(part, "vcodec^=av01")
	}
}

func TestFormatSelector_Specific(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal("137+ba[acodec^=mp4a]/137+ba/137", FormatSelector("137"))
}

func TestCompatible(t *testing.T) {
	assert := assert_.New(t)

	av1Only := []Encoding{
		{ID: "399", VideoCodec: "av01.0.08M.08", AudioCodec: "none"},
		{ID: "140", VideoCodec: "none", AudioCodec: "mp4a.40.2"},
	}
	assert.False(Compatible(av1Only, QualityBest))
	assert.True(Compatible(av1Only, "399"))
	assert.False(Compatible(av1Only, "137"))

	withAVC := append(av1Only, Encoding{ID: "137", VideoCodec: "avc1.640028"})
	assert.True(Compatible(withAVC, QualityBest))
	assert.True(Compatible(withAVC, "137"))
}
