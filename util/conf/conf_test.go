package conf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleContext = `
parameters:
  transition_system: arc-standard
  brain_parser_features: "stack.word;input.tag"
inputs:
  training-corpus: /data/train.conll
  label-map: /data/label-map
`

func TestReadContext(t *testing.T) {
	ctx, err := Read(strings.NewReader(sampleContext))
	require.NoError(t, err)

	assert.Equal(t, "arc-standard", ctx.Get("transition_system", ""))
	assert.Equal(t, "stack.word;input.tag", ctx.Get("brain_parser_features", ""))
	assert.Equal(t, "fallback", ctx.Get("missing", "fallback"))

	path, err := ctx.InputFile("training-corpus")
	require.NoError(t, err)
	assert.Equal(t, "/data/train.conll", path)

	_, err = ctx.InputFile("tag-map")
	assert.Error(t, err)
}

func TestReadEmptyContext(t *testing.T) {
	ctx, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "x", ctx.Get("anything", "x"))
	_, err = ctx.InputFile("anything")
	assert.Error(t, err)
}

func TestSetOverrides(t *testing.T) {
	ctx := New()
	ctx.Set("batch_size", "32")
	ctx.SetInput("tag-map", "/tmp/tag-map")

	assert.Equal(t, "32", ctx.Get("batch_size", ""))
	path, err := ctx.InputFile("tag-map")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/tag-map", path)
}

func TestReadBadYAML(t *testing.T) {
	_, err := Read(strings.NewReader("parameters: [not, a, map]"))
	assert.Error(t, err)
}
