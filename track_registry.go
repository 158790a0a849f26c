package moqt

import "fmt"

// TrackRegistry is a Publisher backed by a plain map of known tracks.
type TrackRegistry struct {
	tracks map[FullTrackName]TrackPublisher
}

var _ Publisher = (*TrackRegistry)(nil)

func NewTrackRegistry() *TrackRegistry {
	return &TrackRegistry{tracks: make(map[FullTrackName]TrackPublisher)}
}

// Add registers a track under the name its publisher reports.
func (r *TrackRegistry) Add(trackPublisher TrackPublisher) error {
	name := trackPublisher.GetTrackName()
	if _, ok := r.tracks[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTrack, name.String())
	}
	r.tracks[name] = trackPublisher
	return nil
}

// Remove forgets a track. Sessions with live subscriptions keep serving it
// until the publisher announces it is gone.
func (r *TrackRegistry) Remove(name FullTrackName) {
	delete(r.tracks, name)
}

func (r *TrackRegistry) GetTrack(name FullTrackName) (TrackPublisher, error) {
	trackPublisher, ok := r.tracks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTrackDoesNotExist, name.String())
	}
	return trackPublisher, nil
}
