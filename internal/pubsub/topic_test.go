package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicDeliversInRegistrationOrder(t *testing.T) {
	var topic Topic[int]
	var got []string

	topic.Subscribe(func(v int) { got = append(got, "a") })
	topic.Subscribe(func(v int) { got = append(got, "b") })

	topic.Publish(1)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, topic.Len())
}

func TestTopicUnsubscribe(t *testing.T) {
	var topic Topic[string]
	var first, second []string

	unsub := topic.Subscribe(func(v string) { first = append(first, v) })
	topic.Subscribe(func(v string) { second = append(second, v) })

	topic.Publish("x")
	unsub()
	unsub()
	topic.Publish("y")

	assert.Equal(t, []string{"x"}, first)
	assert.Equal(t, []string{"x", "y"}, second)
	assert.Equal(t, 1, topic.Len())
}

func TestTopicUnsubscribeDuringPublish(t *testing.T) {
	var topic Topic[int]
	calls := 0

	var unsub func()
	unsub = topic.Subscribe(func(int) {
		calls++
		unsub()
	})
	topic.Subscribe(func(int) { calls++ })

	topic.Publish(1)
	topic.Publish(2)
	assert.Equal(t, 3, calls)
}
