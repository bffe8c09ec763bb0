package completion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	mimeBinary    = "application/octet-stream"
	mimeImageJPEG = "image/jpeg"
)

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".bmp":  "image/bmp",
}

// UploadSet is the registry split into the three disjoint sequences
// a submit request carries.
type UploadSet struct {
	Files       []port.FilePart
	ManualNames []string
	RetainedIDs []string
}

// Registry is the ordered attachment list of one session
type Registry struct {
	items       []entity.Attachment
	attachments port.AttachmentProvider
	now         func() time.Time
	logger      *zap.Logger
}

// NewRegistry creates an empty registry. attachments is used to delete
// stored attachments on confirmed removal.
func NewRegistry(attachments port.AttachmentProvider, logger *zap.Logger) *Registry {
	return &Registry{
		attachments: attachments,
		now:         time.Now,
		logger:      logger,
	}
}

// AddFromFile registers a file picked on the client. Without a display name
// one is generated as <kind>_<timestamp>.<ext>; the name is fixed here so
// later serialization stays stable.
func (r *Registry) AddFromFile(sourceRef, displayName, mimeHint string) *entity.LocalAttachment {
	added := r.now()
	id := uuid.NewString()
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = generatedFileName(sourceRef, mimeHint, added, id)
	}

	att := &entity.LocalAttachment{
		ID:          id,
		DisplayName: name,
		SourceRef:   sourceRef,
		MimeHint:    mimeHint,
		AddedAt:     added,
	}
	r.items = append(r.items, att)
	return att
}

// AddManual registers a name-only attachment
func (r *Registry) AddManual(name string) (*entity.ManualAttachment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingAttachmentName
	}

	att := &entity.ManualAttachment{
		ID:          uuid.NewString(),
		DisplayName: name,
	}
	r.items = append(r.items, att)
	return att, nil
}

// Hydrate appends attachments of a loaded submission
func (r *Registry) Hydrate(remote ...*entity.RemoteAttachment) {
	for _, att := range remote {
		r.items = append(r.items, att)
	}
}

// Items returns the attachments in order
func (r *Registry) Items() []entity.Attachment {
	return append([]entity.Attachment(nil), r.items...)
}

// Get returns one attachment
func (r *Registry) Get(id string) (entity.Attachment, bool) {
	idx := r.indexOf(id)
	if idx < 0 {
		return nil, false
	}
	return r.items[idx], true
}

// RequiresConfirmation is true only for attachments already stored by the portal
func (r *Registry) RequiresConfirmation(id string) bool {
	att, ok := r.Get(id)
	if !ok {
		return false
	}
	return att.Kind() == entity.AttachmentKindExistingRemote
}

// Remove drops an attachment.
//
// Stored attachments need confirmed == true, otherwise ErrConfirmationRequired
// is returned and nothing changes. Once confirmed the portal delete is issued
// and the record is dropped locally whatever its outcome: local state follows
// the user's intent and the remote delete is best-effort. A failed delete is
// returned as a *TransportError after the record is gone.
func (r *Registry) Remove(ctx context.Context, id string, confirmed bool) error {
	idx := r.indexOf(id)
	if idx < 0 {
		return ErrAttachmentNotFound
	}

	remote, isRemote := r.items[idx].(*entity.RemoteAttachment)
	if !isRemote {
		r.drop(idx)
		return nil
	}

	if !confirmed {
		return ErrConfirmationRequired
	}

	deleteErr := r.attachments.Delete(ctx, remote.ServerID)
	r.drop(idx)

	if deleteErr != nil {
		r.logger.Warn("Remote attachment delete failed, removed locally",
			zap.String("attachment_id", remote.ServerID),
			zap.Error(deleteErr))
		return transportError(fmt.Sprintf("delete attachment %s", remote.ServerID), deleteErr)
	}
	return nil
}

// SerializeForUpload splits the registry into file parts, manual names
// and retained stored ids. It does not mutate the registry.
func (r *Registry) SerializeForUpload() UploadSet {
	set := UploadSet{
		Files:       []port.FilePart{},
		ManualNames: []string{},
		RetainedIDs: []string{},
	}

	for _, item := range r.items {
		switch att := item.(type) {
		case *entity.LocalAttachment:
			set.Files = append(set.Files, port.FilePart{
				FileName:  att.DisplayName,
				MimeType:  mimeTypeFor(att.DisplayName, att.MimeHint),
				SourceRef: att.SourceRef,
			})
		case *entity.ManualAttachment:
			set.ManualNames = append(set.ManualNames, att.DisplayName)
		case *entity.RemoteAttachment:
			set.RetainedIDs = append(set.RetainedIDs, att.ServerID)
		}
	}

	return set
}

// Clear releases all attachments
func (r *Registry) Clear() {
	r.items = nil
}

func (r *Registry) drop(idx int) {
	r.items = append(r.items[:idx], r.items[idx+1:]...)
}

func (r *Registry) indexOf(id string) int {
	for i, item := range r.items {
		if item.AttachmentID() == id {
			return i
		}
	}
	return -1
}

// isImage reports whether a file should be uploaded as an image
func isImage(name, mimeHint string) bool {
	if strings.HasPrefix(strings.ToLower(mimeHint), "image/") {
		return true
	}
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// mimeTypeFor derives the upload MIME type: image or generic binary
func mimeTypeFor(name, mimeHint string) string {
	if !isImage(name, mimeHint) {
		return mimeBinary
	}
	if strings.HasPrefix(strings.ToLower(mimeHint), "image/") {
		return strings.ToLower(mimeHint)
	}
	if mt, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return mimeImageJPEG
}

// generatedFileName builds <kind>_<timestamp>_<id prefix>.<ext>; the id prefix
// keeps files added within the same second apart.
func generatedFileName(sourceRef, mimeHint string, at time.Time, id string) string {
	kind, ext := "file", "bin"
	if isImage(sourceRef, mimeHint) {
		kind, ext = "image", "jpg"
	}
	if e := strings.TrimPrefix(strings.ToLower(filepath.Ext(sourceRef)), "."); e != "" {
		ext = e
	}
	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s_%s_%s.%s", kind, at.Format("20060102T150405"), suffix, ext)
}
