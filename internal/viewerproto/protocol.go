package viewerproto

import (
	"encoding/json"
	"fmt"
)

// Version is the viewer protocol version.
const Version = "0.1"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeSeek      = "SEEK"
	TypePlay      = "PLAY"
	TypePause     = "PAUSE"
	TypeVoxels    = "VOXELS"

	TypeScene = "SCENE"
	TypeFrame = "FRAME"
	TypeError = "ERROR"
)

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string                `json:"protocol_version"`
	Title           string                `json:"title,omitempty"`
	Palette         []string              `json:"palette"`
	Classes         []string              `json:"classes"`
	BoundingBox     [3][2]int             `json:"bounding_box"`
	Center          [3]float64            `json:"center"`
	Timespan        [2]string             `json:"timespan"`
	Cursor          string                `json:"cursor"`
	ChunkSize       [3]int                `json:"chunk_size"`
	Layers          []LayerInfo           `json:"layers"`
	Appearances     map[string]Appearance `json:"appearances"`
}

type LayerInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Appearance struct {
	Color       string  `json:"color"`
	Transparent bool    `json:"transparent"`
	Opacity     float64 `json:"opacity"`
}

// Client -> Server. First message on the websocket; may be re-sent to get a
// fresh SCENE.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Client -> Server. TS is any timestamp form accepted in exports.
type SeekMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	TS              string `json:"ts"`
}

type PlayMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Speed           float64 `json:"speed,omitempty"`
}

type PauseMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Client -> Server. Request the voxel storage of one chunk.
type VoxelsReq struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Chunk           [3]int `json:"chunk"`
}

// Server -> Client. Every renderable at the current cursor.
type SceneMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Seq             uint64   `json:"seq"`
	Cursor          string   `json:"cursor"`
	Playing         bool     `json:"playing"`
	Objects         []Object `json:"objects"`
}

// Server -> Client. Sent after every seek with the renderables it changed.
type FrameMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Seq             uint64   `json:"seq"`
	From            string   `json:"from"`
	To              string   `json:"to"`
	Ops             int      `json:"ops"`
	Chunks          int      `json:"chunks"`
	Objects         []Object `json:"objects"`
}

// Server -> Client. Encoding "PAL16_RLE_YZX" means:
// - Decode base64 to (uint16 LE palette id, uvarint run length) pairs
// - Iteration order: for y, for z, for x (x fastest)
// - A run never crosses a Y layer of Size[0]*Size[2] ids
// - Total length: Size[0]*Size[1]*Size[2] ids
type VoxelsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Chunk           [3]int `json:"chunk"`
	Origin          [3]int `json:"origin"`
	Size            [3]int `json:"size"`
	Encoding        string `json:"encoding"`
	Data            string `json:"data"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// Object is one renderable. Exactly one of Mesh and Marker is set.
type Object struct {
	ID         string       `json:"id"`
	Layer      string       `json:"layer"`
	Appearance string       `json:"appearance"`
	Kind       string       `json:"kind"`
	Mesh       *MeshBuffers `json:"mesh,omitempty"`
	Marker     *MarkerState `json:"marker,omitempty"`
}

// MeshBuffers carry base64 little-endian arrays: float32 xyz positions and
// normals, uint32 triangle indices.
type MeshBuffers struct {
	Vertices  int    `json:"vertices"`
	Triangles int    `json:"triangles"`
	Positions string `json:"positions"`
	Normals   string `json:"normals"`
	Indices   string `json:"indices"`
}

// MarkerState places a unit shape by a column-major 4x4 transform.
type MarkerState struct {
	Shape       string      `json:"shape"`
	RadiusStart float32     `json:"radius_start"`
	RadiusEnd   float32     `json:"radius_end,omitempty"`
	Height      float32     `json:"height,omitempty"`
	Transform   [16]float32 `json:"transform"`
	Visible     bool        `json:"visible"`
}

type envelope struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// DecodeClient parses one client message. It returns one of *SubscribeMsg,
// *SeekMsg, *PlayMsg, *PauseMsg or *VoxelsReq.
func DecodeClient(b []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	if env.ProtocolVersion != Version {
		return nil, fmt.Errorf("unsupported protocol_version %q", env.ProtocolVersion)
	}
	var msg any
	switch env.Type {
	case TypeSubscribe:
		msg = &SubscribeMsg{}
	case TypeSeek:
		msg = &SeekMsg{}
	case TypePlay:
		msg = &PlayMsg{}
	case TypePause:
		msg = &PauseMsg{}
	case TypeVoxels:
		msg = &VoxelsReq{}
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
	if err := json.Unmarshal(b, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
