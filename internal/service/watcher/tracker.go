package watcher

import (
	"slices"

	"google.golang.org/protobuf/types/known/structpb"
)

// tracker remembers which alarm events were already reported.
type tracker struct {
	seen map[string]struct{}
}

func newTracker() *tracker {
	return &tracker{
		seen: make(map[string]struct{}),
	}
}

// unseen returns the events of a newest-first history that were not reported
// before, oldest first. Ids that left the bounded history are forgotten.
func (t *tracker) unseen(history *structpb.ListValue) []*structpb.Struct {
	var (
		fresh   []*structpb.Struct
		current = make(map[string]struct{}, len(history.GetValues()))
	)

	for _, value := range history.GetValues() {
		event := value.GetStructValue()

		id := event.GetFields()["id"].GetStringValue()
		if id == "" {
			continue
		}

		current[id] = struct{}{}

		if _, ok := t.seen[id]; !ok {
			fresh = append(fresh, event)
		}
	}

	t.seen = current

	slices.Reverse(fresh)

	return fresh
}
