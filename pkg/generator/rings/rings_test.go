package rings

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacktea/xavatar/pkg/generator/generatortest"
)

func TestBuildIsDeterministic(t *testing.T) {
	h := "0cc175b9c0f1b6a831c399e269772661"
	a, err := New().Build(h, 96)
	require.NoError(t, err)
	b, err := New().Build(h, 96)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := New().Build("92eb5ffee6ae2fec3ad71c777531578f", 96)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestBuildProducesThreeRings(t *testing.T) {
	out, err := New().Build("abc12345", 40)
	require.NoError(t, err)
	var doc struct {
		Width string `xml:"width,attr"`
		Path  struct {
			D string `xml:"d,attr"`
		} `xml:"path"`
		Circle struct {
			R string `xml:"r,attr"`
		} `xml:"circle"`
	}
	require.NoError(t, xml.Unmarshal(out, &doc))
	assert.Equal(t, "40", doc.Width)
	assert.NotEmpty(t, doc.Circle.R)
	for _, r := range []string{"A42 42", "A31 31", "A20 20"} {
		assert.True(t, strings.Contains(doc.Path.D, r), "missing ring %s", r)
	}
}

func TestBuildRejectsInvalidSize(t *testing.T) {
	_, err := New().Build("abc12345", -1)
	assert.Error(t, err)
}

func TestBuildSameAcrossProcesses(t *testing.T) {
	generatortest.SameAcrossProcesses(t, New(), "0cc175b9c0f1b6a831c399e269772661", 96)
}
