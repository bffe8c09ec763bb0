package port

import (
	"context"
	"io"
)

// StagingStorage holds files picked by a liaison until the session submits
type StagingStorage interface {
	// Stage stores content for a session and returns its source reference
	Stage(ctx context.Context, sessionID, fileName string, content io.Reader) (string, error)

	// Read returns the content behind a source reference
	Read(ctx context.Context, ref string) ([]byte, error)

	// Release removes every file staged for a session
	Release(ctx context.Context, sessionID string) error
}
