package session

import "marketmood/internal/domain"

// EventKind identifies what a session event describes.
type EventKind string

const (
	EventTickerSelected    EventKind = "ticker_selected"
	EventFavoritesChanged  EventKind = "favorites_changed"
	EventAnalysisStarted   EventKind = "analysis_started"
	EventArticleClassified EventKind = "article_classified"
	EventAnalysisFinished  EventKind = "analysis_finished"
)

// Event is emitted to subscribers on state transitions and analysis
// progress. Only the fields relevant to the kind are set.
type Event struct {
	Kind      EventKind   `json:"kind"`
	Symbol    string      `json:"symbol,omitempty"`
	Favorites []string    `json:"favorites,omitempty"`
	Done      int         `json:"done,omitempty"`
	Total     int         `json:"total,omitempty"`
	Mood      domain.Mood `json:"mood,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// Subscribe creates a new subscription channel for session events.
func (s *State) Subscribe(bufSize int) (id int, ch <-chan Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id = s.nextSubID
	s.nextSubID++
	c := make(chan Event, bufSize)
	s.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscription and closes its channel.
func (s *State) Unsubscribe(id int) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// publish fans an event out to all subscribers (non-blocking send).
func (s *State) publish(evt Event) {
	s.subsMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Slow subscriber, drop event.
		}
	}
	s.subsMu.Unlock()
}
