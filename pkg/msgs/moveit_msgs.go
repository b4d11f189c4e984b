package msgs

// Operations carried by a CollisionObject.
const (
	CollisionObjectAdd    int8 = 0
	CollisionObjectRemove int8 = 1
	CollisionObjectAppend int8 = 2
	CollisionObjectMove   int8 = 3
)

// CollisionObject mirrors the mesh part of moveit_msgs/CollisionObject.
type CollisionObject struct {
	Header    Header `json:"header" msg:"header"`
	ID        string `json:"id" msg:"id"`
	Meshes    []Mesh `json:"meshes" msg:"meshes"`
	MeshPoses []Pose `json:"mesh_poses" msg:"mesh_poses"`
	Operation int8   `json:"operation" msg:"operation"`
}

func (CollisionObject) MessageType() string { return "moveit_msgs/CollisionObject" }

func (c CollisionObject) ToMap() map[string]interface{} {
	meshes := make([]interface{}, len(c.Meshes))
	for i, m := range c.Meshes {
		meshes[i] = m.ToMap()
	}
	poses := make([]interface{}, len(c.MeshPoses))
	for i, p := range c.MeshPoses {
		poses[i] = p.ToMap()
	}
	return map[string]interface{}{
		"header":     c.Header.ToMap(),
		"id":         c.ID,
		"meshes":     meshes,
		"mesh_poses": poses,
		"operation":  c.Operation,
	}
}

// CollisionObjectFromMap decodes a moveit_msgs/CollisionObject wire map.
func CollisionObjectFromMap(m map[string]interface{}) (CollisionObject, error) {
	return decodeAs[CollisionObject](m)
}
