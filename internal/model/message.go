// Package model defines data structure.
package model

import (
	"time"
)

// ImageCaption is the text posted alongside an image attachment.
const ImageCaption = "📷 Image"

// Message holds information about a single feed entry. It is the shape of a
// document in the messages collection, of a live query snapshot element and
// of a cached snapshot element.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Sender    string    `json:"sender"`
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasImage reports whether the message references an uploaded image.
func (m Message) HasImage() bool {
	return m.ImageURL != ""
}

// Caption returns the text to display next to the message body. The
// placeholder caption of an image message is hidden.
func (m Message) Caption() string {
	if m.HasImage() && m.Text == ImageCaption {
		return ""
	}
	return m.Text
}

// NewMessage is a message about to be written. ID and CreatedAt are
// assigned by the document store at write time.
type NewMessage struct {
	Text     string
	ImageURL string
	Sender   string
	UID      string
}
