package insights

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/vibeflow/internal/spotify"
	"github.com/dustin/go-humanize"
)

// FactInterval is how long each artist fact stays on screen.
const FactInterval = 8 * time.Second

// UnavailableFact is shown when the artist could not be loaded.
const UnavailableFact = "Unable to load artist information"

// BuildArtistFacts turns an artist and its top tracks into display sentences.
//
// It never returns an empty slice: an artist with nothing notable gets a single placeholder.
func BuildArtistFacts(artist *spotify.Artist, topTracks []spotify.Track) []string {
	if artist == nil {
		return []string{UnavailableFact}
	}

	name := artist.Name
	var facts []string

	if len(artist.Genres) > 0 {
		genres := artist.Genres[:min(3, len(artist.Genres))]
		facts = append(facts, fmt.Sprintf("%s is known for %s music", name, strings.Join(genres, ", ")))
	}

	if p := artist.Popularity; p > 0 {
		switch {
		case p > 80:
			facts = append(facts, fmt.Sprintf("%s is one of the most popular artists on Spotify right now!", name))
		case p > 60:
			facts = append(facts, fmt.Sprintf("%s has a massive following with a popularity score of %d/100", name, p))
		case p > 40:
			facts = append(facts, fmt.Sprintf("%s is steadily growing in popularity on Spotify", name))
		default:
			facts = append(facts, fmt.Sprintf("%s is an up-and-coming artist worth discovering", name))
		}
	}

	if f := artist.Followers.Total; f > 0 {
		switch {
		case f >= 10_000_000:
			facts = append(facts, fmt.Sprintf("%s has an incredible %.1f million followers!", name, float64(f)/1e6))
		case f >= 1_000_000:
			facts = append(facts, fmt.Sprintf("%s has %.1fM loyal fans on Spotify", name, float64(f)/1e6))
		case f >= 100_000:
			facts = append(facts, fmt.Sprintf("%s has built a strong fanbase of %.0fK followers", name, float64(f)/1e3))
		default:
			facts = append(facts, fmt.Sprintf("%s has %s followers and counting", name, humanize.Comma(int64(f))))
		}
	}

	if len(topTracks) > 0 {
		facts = append(facts, fmt.Sprintf("%s's biggest hit is \"%s\"", name, topTracks[0].Name))
	}

	if len(facts) == 0 {
		return []string{"No additional info available for " + name}
	}
	return facts
}

// Rotation cycles through facts, one every [FactInterval].
type Rotation struct {
	facts []string
	index int
}

// NewRotation starts at the first fact.
func NewRotation(facts []string) *Rotation {
	return &Rotation{facts: facts}
}

// Current returns the fact on screen, or "" when there are none.
func (r *Rotation) Current() string {
	if r == nil || len(r.facts) == 0 {
		return ""
	}
	return r.facts[r.index]
}

// Advance moves to the next fact, wrapping around. A single fact never rotates.
func (r *Rotation) Advance() {
	if r == nil || len(r.facts) <= 1 {
		return
	}
	r.index = (r.index + 1) % len(r.facts)
}

// Position returns the 1-based index and the number of facts.
func (r *Rotation) Position() (int, int) {
	if r == nil || len(r.facts) == 0 {
		return 0, 0
	}
	return r.index + 1, len(r.facts)
}
