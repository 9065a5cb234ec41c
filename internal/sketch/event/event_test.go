package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apisketch/internal/apperrors"
	"apisketch/internal/sketch/node"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		evt     Event
		wantErr bool
	}{
		{"define root", New("s1", "u1", DefineRoot{RootNode: node.NewRoot()}), false},
		{"add", New("s1", "u1", Add{ParentID: node.RootID, ID: "n1", Name: "a", Fullpath: "/a"}), false},
		{"add without parent", New("s1", "u1", Add{ID: "n1"}), true},
		{"add with root id", New("s1", "u1", Add{ParentID: node.RootID, ID: node.RootID}), true},
		{"update", New("s1", "u1", Update{NodeID: "n1", Data: map[string]node.MethodPatch{"get": {Enabled: node.Bool(true)}}}), false},
		{"update unknown verb", New("s1", "u1", Update{NodeID: "n1", Data: map[string]node.MethodPatch{"head": {}}}), true},
		{"delete", New("s1", "u1", Delete{NodeID: "n1"}), false},
		{"delete without node", New("s1", "u1", Delete{}), true},
		{"move", New("s1", "u1", Move{NodeID: "a", TargetID: "b"}), false},
		{"move onto itself", New("s1", "u1", Move{NodeID: "a", TargetID: "a"}), true},
		{"missing sketch", New("", "u1", Delete{NodeID: "n1"}), true},
		{"nil payload", Event{SketchID: "s1", Type: TypeAdd}, true},
		{"mismatched type", Event{SketchID: "s1", Type: TypeAdd, Payload: Delete{NodeID: "x"}}, true},
		{"unknown type", Event{SketchID: "s1", Type: "treenode_rename", Payload: Delete{NodeID: "x"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.evt.Validate()
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvent)
			assert.Equal(t, apperrors.CodeGeneric, apperrors.CodeOf(err))
		})
	}
}

func TestDecodeUpdateKeepsAbsentFieldsNil(t *testing.T) {
	raw := []byte(`{"nodeId":"n1","data":{"get":{"enabled":true,"response":{"body":"{}"}}}}`)

	p, err := DecodePayload(TypeUpdate, raw)
	require.NoError(t, err)
	upd, ok := p.(Update)
	require.True(t, ok)

	assert.Equal(t, "n1", upd.NodeID)
	assert.Nil(t, upd.Name)
	assert.Nil(t, upd.Fullpath)
	get := upd.Data["get"]
	require.NotNil(t, get.Enabled)
	assert.True(t, *get.Enabled)
	assert.Nil(t, get.Request)
	require.NotNil(t, get.Response)
	assert.Nil(t, get.Response.Status)
	assert.Equal(t, "{}", *get.Response.Body)
}

func TestDecodeLegacyDefineRoot(t *testing.T) {
	raw := []byte(`{"rootNode":{"id":"root-node","name":"/","responseData":{},"children":[]}}`)

	evt, err := Decode(1, "s1", "u1", "treenode_defineroot", raw)
	require.NoError(t, err)
	assert.Equal(t, TypeDefineRoot, evt.Type)
	assert.Equal(t, int64(1), evt.Seq)
	assert.NoError(t, evt.Validate())
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode(1, "s1", "u1", "treenode_rename", []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestEncodeMove(t *testing.T) {
	raw, err := EncodePayload(Move{NodeID: "a", TargetID: "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodeId":"a","targetId":"b"}`, string(raw))
}
