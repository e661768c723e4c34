package playlist

// Kind labels what a segment carries. It only affects logging and the
// /status surface; the broadcast loop treats all kinds identically.
type Kind string

const (
	KindMusic        Kind = "music"
	KindNews         Kind = "news"
	KindWeather      Kind = "weather"
	KindJingle       Kind = "jingle"
	KindInterstitial Kind = "interstitial"
	KindTimecheck    Kind = "timecheck"
	KindFallback     Kind = "fallback"
)

// Segment is one complete, independently playable unit of encoded audio.
//
// A segment is immutable once enqueued: nobody rewrites the file in place,
// and it is either fully delivered or discarded. Deleting the underlying
// file after delivery is the consumer's job, gated on Ephemeral so library
// masters and the continuity fallback survive.
type Segment struct {
	ID    string
	Path  string
	Size  int64
	Kind  Kind
	Title string

	// Ephemeral marks produced output (TTS, mixes, prepared tracks) that
	// should be removed from disk once fully broadcast.
	Ephemeral bool
}
