package mqtt

import "strings"

const DefaultBaseTopic = "fl"

// Topics lays out the round protocol under a common base, e.g.
// fl/workers/3/tasks, fl/workers/3/results and fl/rounds/next.
type Topics struct {
	Base string
}

func NewTopics(base string) Topics {
	base = strings.Trim(base, "/")
	if base == "" {
		base = DefaultBaseTopic
	}

	return Topics{Base: base}
}

func (t Topics) Tasks(workerID string) string {
	return t.Base + "/workers/" + workerID + "/tasks"
}

func (t Topics) Results(workerID string) string {
	return t.Base + "/workers/" + workerID + "/results"
}

func (t Topics) AllResults() string {
	return t.Results("+")
}

func (t Topics) Status(workerID string) string {
	return t.Base + "/workers/" + workerID + "/status"
}

func (t Topics) RoundsNext() string {
	return t.Base + "/rounds/next"
}

// Match reports whether topic matches an MQTT subscription filter.
func Match(filter, topic string) bool {
	if filter == "#" || filter == topic {
		return true
	}

	filterParts := strings.Split(filter, "/")
	topicParts := strings.Split(topic, "/")

	for i, part := range filterParts {
		if part == "#" {
			return true
		}
		if i >= len(topicParts) {
			return false
		}
		if part != "+" && part != topicParts[i] {
			return false
		}
	}

	return len(filterParts) == len(topicParts)
}
