package host

import (
	"testing"

	"github.com/RogersSierra/extension/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Vehicle     = (*Frame)(nil)
	_ PropFactory = (*Frame)(nil)
	_ Skeleton    = BoneMap(nil)
)

func TestParseBoneMap(t *testing.T) {
	bones, err := ParseBoneMap(`{"dwheel_1":[0,1.2,0.8],"rod":[0,1.5,0.8]}`)
	require.NoError(t, err)

	v, ok := bones.BoneOffset("rod")
	require.True(t, ok)
	assert.Equal(t, core.Vector3{X: 0, Y: 1.5, Z: 0.8}, v)

	_, ok = bones.BoneOffset("piston")
	assert.False(t, ok)

	_, err = ParseBoneMap(`not json`)
	assert.Error(t, err)
}

func TestFrame_CollectsCommands(t *testing.T) {
	f := NewFrame("veh_1")
	assert.Equal(t, "veh_1", f.Handle())

	piston, err := f.AttachProp("piston", "piston")
	require.NoError(t, err)
	rod, err := f.AttachProp("connecting_rod", "rod")
	require.NoError(t, err)

	f.SetTrainSpeed(4.5)
	piston.SetOffset(core.Vector3{Y: 0.2})
	rod.SetRotation(core.Vector3{X: 12})
	rod.Detach()

	cmds := f.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "connecting_rod", cmds[0].Name)
	assert.True(t, cmds[0].Detached)
	assert.Equal(t, 12.0, cmds[0].Rotation.X)
	assert.Equal(t, 0.2, cmds[1].Offset.Y)
	assert.Equal(t, 4.5, f.Speed())
}
