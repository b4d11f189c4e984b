package msgs

// Time mirrors std_msgs/Time (ROS1 stamp layout).
type Time struct {
	Secs  int32 `json:"secs" msg:"secs"`
	Nsecs int32 `json:"nsecs" msg:"nsecs"`
}

func (Time) MessageType() string { return "std_msgs/Time" }

func (t Time) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"secs":  t.Secs,
		"nsecs": t.Nsecs,
	}
}

// DefaultFrameID is the frame stamped on headers built without one.
const DefaultFrameID = "/world"

// Header mirrors std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq" msg:"seq"`
	Stamp   Time   `json:"stamp" msg:"stamp"`
	FrameID string `json:"frame_id" msg:"frame_id"`
}

// NewHeader returns a header with a zero stamp in the given frame. An empty
// frame id selects DefaultFrameID.
func NewHeader(frameID string) Header {
	if frameID == "" {
		frameID = DefaultFrameID
	}
	return Header{FrameID: frameID}
}

func (Header) MessageType() string { return "std_msgs/Header" }

func (h Header) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"seq":      h.Seq,
		"stamp":    h.Stamp.ToMap(),
		"frame_id": h.FrameID,
	}
}

// HeaderFromMap decodes a std_msgs/Header wire map.
func HeaderFromMap(m map[string]interface{}) (Header, error) {
	return decodeAs[Header](m)
}
