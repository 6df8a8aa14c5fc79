package mapping

import (
	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/robot"
)

// MeasurementSource yields buffered update records, oldest first.
type MeasurementSource interface {
	NextMeasurement() (robot.Measurement, bool)
}

// SensorReading is one ranging sensor's end point in the world frame. When
// Hit is false the point lies at maximum range and marks free space only.
type SensorReading struct {
	Position grid.Position
	Hit      bool
}

// MeasurementHandler turns a robot's raw update records into a world pose
// and per-sensor end points.
type MeasurementHandler struct {
	source      MeasurementSource
	initial     grid.Pose
	sensorRange float64

	pose     grid.Pose
	readings []SensorReading
}

// NewMeasurementHandler reads from src. Reported poses are relative to
// initial, the robot's start pose in the world frame.
func NewMeasurementHandler(src MeasurementSource, initial grid.Pose, sensorRange int) *MeasurementHandler {
	return &MeasurementHandler{
		source:      src,
		initial:     initial,
		sensorRange: float64(sensorRange),
		pose:        initial,
	}
}

// Update consumes the next record. It returns false when none is buffered,
// leaving the previous pose and readings in place.
func (h *MeasurementHandler) Update() bool {
	m, ok := h.source.NextMeasurement()
	if !ok {
		return false
	}
	h.pose = m.Pose.Transform(h.initial)
	h.readings = h.readings[:0]
	for i, d := range m.Distances {
		dist := float64(d)
		hit := true
		if d <= 0 || dist >= h.sensorRange {
			hit = false
			dist = h.sensorRange
		}
		bearing := m.SensorHeadings[i] + h.pose.Heading
		h.readings = append(h.readings, SensorReading{
			Position: h.pose.Position.Offset(dist, bearing),
			Hit:      hit,
		})
	}
	return true
}

// Pose is the robot's world pose from the last consumed record.
func (h *MeasurementHandler) Pose() grid.Pose { return h.pose }

// Sensors returns the readings of the last consumed record. The slice is
// reused by the next Update.
func (h *MeasurementHandler) Sensors() []SensorReading { return h.readings }
