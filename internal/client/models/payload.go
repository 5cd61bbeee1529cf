package models

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a record payload.
type Kind string

const (
	KindNote            Kind = "note"
	KindPrayerRequest   Kind = "prayer_request"
	KindVerseAnnotation Kind = "verse_annotation"
)

// Typed is implemented by every concrete payload.
type Typed interface {
	GetKind() Kind
}

// Wrap marshals a typed payload into the raw form stored in Record.Payload.
func Wrap(v Typed) (Kind, json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	return v.GetKind(), b, nil
}

// Unwrap decodes the payload into its concrete type based on Kind. Unknown
// kinds decode into a generic map so foreign records still round-trip.
func (r Record) Unwrap() (any, error) {
	switch r.Kind {
	case KindNote:
		var v Note
		return v, json.Unmarshal(r.Payload, &v)
	case KindPrayerRequest:
		var v PrayerRequest
		return v, json.Unmarshal(r.Payload, &v)
	case KindVerseAnnotation:
		var v VerseAnnotation
		return v, json.Unmarshal(r.Payload, &v)
	default:
		var m map[string]any
		if err := json.Unmarshal(r.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// Note stores free-form member text.
type Note struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

func (x Note) GetKind() Kind { return KindNote }

// PrayerRequest is shared with the congregation; Anonymous hides the
// author's name in rendered feeds, not the AuthorID used for merging.
type PrayerRequest struct {
	Text        string `json:"text"`
	DisplayName string `json:"display_name,omitempty"`
	Anonymous   bool   `json:"anonymous,omitempty"`
}

func (x PrayerRequest) GetKind() Kind { return KindPrayerRequest }

// VerseAnnotation attaches member commentary to a scripture reference.
type VerseAnnotation struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

func (x VerseAnnotation) GetKind() Kind { return KindVerseAnnotation }

// Reference renders the scripture reference ("John 3:16").
func (x VerseAnnotation) Reference() string {
	return fmt.Sprintf("%s %d:%d", x.Book, x.Chapter, x.Verse)
}
