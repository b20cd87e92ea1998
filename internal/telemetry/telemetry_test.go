package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_String(t *testing.T) {
	s := &Snapshot{X: 1, Y: 2, Z: Float(9), VX: 0.5, Yaw: Float(1.5708)}
	assert.Equal(t, "position=(1.00, 2.00, 9.00) velocity=(0.50, 0.00, 0.00) yaw=1.57", s.String())

	unknown := &Snapshot{X: 1, Y: 2}
	assert.False(t, unknown.HasAltitude())
	assert.False(t, unknown.HasYaw())
	assert.Equal(t, "position=(1.00, 2.00, n/a) velocity=(0.00, 0.00, 0.00) yaw=n/a", unknown.String())
}

func TestPosition_String(t *testing.T) {
	assert.Equal(t, "(0.00, 10.00, 10.00)", Position{X: 0, Y: 10, Z: 10}.String())
}
