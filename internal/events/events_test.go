package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutingKey(t *testing.T) {
	e := Event{Type: "task_approved"}
	assert.Equal(t, "notification.task_approved", e.RoutingKey())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: "low_balance"}))
	assert.NoError(t, p.Close())
}
