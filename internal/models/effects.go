// internal/models/effects.go
package models

// MaxMotorTicks is the top of the servo goal-position range that 360° maps onto.
const MaxMotorTicks = 4095

// MotorCommand moves one servo when the scene is displayed.
type MotorCommand struct {
	MotorID         int `json:"motor_id" yaml:"id"`
	PositionDegrees int `json:"position_degrees" yaml:"position"`
}

// Ticks converts the goal position to the servo's tick range, clamping to [0,360]°.
func (m MotorCommand) Ticks() int {
	deg := float64(m.PositionDegrees)
	if deg < 0 {
		deg = 0
	}
	if deg > 360 {
		deg = 360
	}
	return int(deg / 360.0 * MaxMotorTicks)
}

// RobotPose is a whole-body target for the companion robot. Lengths are metres,
// angles radians.
type RobotPose struct {
	HeadX        float64 `json:"head_x" yaml:"head_x"`
	HeadY        float64 `json:"head_y" yaml:"head_y"`
	HeadZ        float64 `json:"head_z" yaml:"head_z"`
	HeadRoll     float64 `json:"head_roll" yaml:"head_roll"`
	HeadPitch    float64 `json:"head_pitch" yaml:"head_pitch"`
	HeadYaw      float64 `json:"head_yaw" yaml:"head_yaw"`
	BodyYaw      float64 `json:"body_yaw" yaml:"body_yaw"`
	AntennaLeft  float64 `json:"antenna_left" yaml:"antenna_left"`
	AntennaRight float64 `json:"antenna_right" yaml:"antenna_right"`
}

// HeadPose is the head part of a RobotTarget.
type HeadPose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// RobotTarget is the message shape the robot's set_target endpoint accepts.
type RobotTarget struct {
	TargetHeadPose HeadPose   `json:"target_head_pose"`
	TargetBodyYaw  float64    `json:"target_body_yaw"`
	TargetAntennas [2]float64 `json:"target_antennas"`
}

// Target converts the pose to its wire form.
func (p RobotPose) Target() RobotTarget {
	return RobotTarget{
		TargetHeadPose: HeadPose{
			X:     p.HeadX,
			Y:     p.HeadY,
			Z:     p.HeadZ,
			Roll:  p.HeadRoll,
			Pitch: p.HeadPitch,
			Yaw:   p.HeadYaw,
		},
		TargetBodyYaw:  p.BodyYaw,
		TargetAntennas: [2]float64{p.AntennaLeft, p.AntennaRight},
	}
}

// MotorTarget is a MotorCommand plus its tick value.
type MotorTarget struct {
	MotorID         int `json:"motor_id"`
	PositionDegrees int `json:"position_degrees"`
	Ticks           int `json:"ticks"`
}

// SideEffects are the actuator commands attached to the current scene. They are
// derived from the story graph and the scene index only.
type SideEffects struct {
	SceneIndex  int           `json:"scene_index"`
	Motors      []MotorTarget `json:"motors"`
	AudioFile   string        `json:"audio_file,omitempty"`
	RobotPose   *RobotPose    `json:"robot_pose,omitempty"`
	RobotTarget *RobotTarget  `json:"robot_target,omitempty"`
}

// Empty reports whether there is nothing to dispatch.
func (fx SideEffects) Empty() bool {
	return len(fx.Motors) == 0 && fx.AudioFile == "" && fx.RobotPose == nil
}
