package core

import (
	"strconv"
	"time"
)

// Track is a playable track as returned by the remote catalog.
type Track struct {
	ID          int      `json:"_id"`
	Title       string   `json:"name"`
	Author      string   `json:"author"`
	Album       string   `json:"album"`
	Genres      []string `json:"genre"`
	ReleaseDate string   `json:"release_date"`
	DurationSec int      `json:"duration_in_seconds"`
	MediaURL    string   `json:"track_file"`
	Logo        string   `json:"logo,omitempty"`
	StaredUsers []User   `json:"staredUser,omitempty"`
}

// Duration returns the catalog duration of the track.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationSec) * time.Second
}

// Item returns the reduced projection used by playlist contexts.
func (t Track) Item() PlaylistItem {
	return PlaylistItem{
		ID:          t.ID,
		Title:       t.Title,
		Author:      t.Author,
		Album:       t.Album,
		MediaURL:    t.MediaURL,
		DurationSec: float64(t.DurationSec),
	}
}

// PlaylistItem is the subset of a track the player advances through.
type PlaylistItem struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Album       string  `json:"album"`
	MediaURL    string  `json:"media_url"`
	DurationSec float64 `json:"duration"`
}

// Items projects a track list into a playlist context.
func Items(tracks []Track) []PlaylistItem {
	items := make([]PlaylistItem, len(tracks))
	for i, t := range tracks {
		items[i] = t.Item()
	}
	return items
}

// IndexOf returns the position of the item with the given id, or -1.
func IndexOf(items []PlaylistItem, id int) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Selection is a curated playlist published by the service.
type Selection struct {
	ID    int    `json:"_id"`
	Name  string `json:"name"`
	Items []int  `json:"items"`
}

// Label returns a display name, falling back to the numeric id.
func (s Selection) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return "Selection " + strconv.Itoa(s.ID)
}
