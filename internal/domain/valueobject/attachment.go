package valueobject

// MediaKind classifies an attachment.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaVoice    MediaKind = "voice"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// Attachment is a reference to a platform-hosted media object. The
// gateway never downloads media itself; refs are passed through to the
// agent collaborator.
type Attachment struct {
	Kind MediaKind `json:"kind"`
	Ref  string    `json:"ref"`
	MIME string    `json:"mime,omitempty"`
	Name string    `json:"name,omitempty"`
}
