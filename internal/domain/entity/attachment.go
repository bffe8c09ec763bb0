package entity

import "time"

// Attachment is one file or named reference of a submission.
// The three implementations are the only lifecycles an attachment can have.
type Attachment interface {
	AttachmentID() string
	Name() string
	Kind() AttachmentKind
	isAttachment()
}

// LocalAttachment is a file picked on the client that has not been uploaded yet
type LocalAttachment struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	SourceRef   string    `json:"source_ref"`
	MimeHint    string    `json:"mime_hint,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// RemoteAttachment is an attachment already persisted by the portal.
// It is only created when a loaded submission is rehydrated.
type RemoteAttachment struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	ServerID    string      `json:"server_id"`
	RemotePath  string      `json:"remote_path,omitempty"`
	Display     DisplayKind `json:"display"`
}

// ManualAttachment is a name-only entry; it never carries a payload
type ManualAttachment struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func (a *LocalAttachment) AttachmentID() string { return a.ID }
func (a *LocalAttachment) Name() string         { return a.DisplayName }
func (a *LocalAttachment) Kind() AttachmentKind { return AttachmentKindNewLocal }
func (a *LocalAttachment) isAttachment()        {}

func (a *RemoteAttachment) AttachmentID() string { return a.ID }
func (a *RemoteAttachment) Name() string         { return a.DisplayName }
func (a *RemoteAttachment) Kind() AttachmentKind { return AttachmentKindExistingRemote }
func (a *RemoteAttachment) isAttachment()        {}

func (a *ManualAttachment) AttachmentID() string { return a.ID }
func (a *ManualAttachment) Name() string         { return a.DisplayName }
func (a *ManualAttachment) Kind() AttachmentKind { return AttachmentKindManual }
func (a *ManualAttachment) isAttachment()        {}
