package sgu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFileKind(t *testing.T) {
	assert.Equal(t, KindScene, GetFileKind("levels/intro.sg"))
	assert.Equal(t, KindScene, GetFileKind("LEVELS/INTRO.SG"))
	assert.Equal(t, KindModel, GetFileKind("models/tri.gm"))
	assert.Equal(t, KindOther, GetFileKind("textures/grass.png"))
	assert.Equal(t, "model", KindModel.String())
}

func TestTraceScene(t *testing.T) {
	data := newSceneBuilder(t, SceneVersion).
		item("node", "child", 1, int32Prop("unknown", 7)).
		item("node", "parent", -1).
		bytes()

	root, err := TraceScene(bytes.NewReader(data), "trace.sg")
	require.NoError(t, err)
	require.Len(t, root.Childs, 1)

	sg := root.Childs[0]
	assert.Equal(t, SceneChunk, sg.Name)
	require.Len(t, sg.Childs, 2)

	unknown := sg.Childs[0].Childs[2]
	assert.Equal(t, "sg/node/unknown", unknown.Path())
	assert.EqualValues(t, 4, unknown.Skipped)
	assert.Contains(t, root.StringTree(), "chunk<parent>")
}

func TestTraceSceneError(t *testing.T) {
	data := newSceneBuilder(t, SceneVersion).item("shadow", "s", -1).bytes()
	root, err := TraceScene(bytes.NewReader(data), "bad.sg")
	assert.Error(t, err)
	require.NotNil(t, root)
	assert.Contains(t, root.StringTree(), "chunk<shadow>")
}
