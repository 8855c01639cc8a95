package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemberDisplayNameFallsBackToCode(t *testing.T) {
	m := Member{Code: "MBR-0007"}
	assert.Equal(t, "MBR-0007", m.DisplayName())

	m.Name = "Kavira Marie"
	assert.Equal(t, "Kavira Marie", m.DisplayName())
}

func TestMemberCanReceiveMessages(t *testing.T) {
	m := Member{Phone: "+243970000001"}
	assert.False(t, m.CanReceiveMessages())

	m.APIKey = "key"
	assert.True(t, m.CanReceiveMessages())
}
