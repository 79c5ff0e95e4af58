package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/pong-arena/models"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// BracketArchiver stores the final snapshot of a completed room.
type BracketArchiver interface {
	Archive(ctx context.Context, room *models.TournamentRoom) (*UploadResult, error)
}

type bracketArchiver struct {
	uploader FileUploader
}

func NewBracketArchiver(uploader FileUploader) BracketArchiver {
	return &bracketArchiver{uploader: uploader}
}

func (a *bracketArchiver) Archive(ctx context.Context, room *models.TournamentRoom) (*UploadResult, error) {
	if room.Status != models.RoomStatusCompleted {
		return nil, fmt.Errorf("%w: room %d is not completed", models.ErrInvalidState, room.ID)
	}

	body, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("failed to encode room %d: %w", room.ID, err)
	}

	return a.uploader.Upload(ctx, ArchiveKey(room), "application/json", bytes.NewReader(body))
}

// ArchiveKey names the object for a room snapshot, for example
// "brackets/12-friday-cup/<uuid>.json".
func ArchiveKey(room *models.TournamentRoom) string {
	name := slug.Make(room.Name)
	if name == "" {
		name = "room"
	}
	return fmt.Sprintf("brackets/%d-%s/%s.json", room.ID, name, uuid.NewString())
}

// NopArchiver is used when no object storage is configured.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, *models.TournamentRoom) (*UploadResult, error) {
	return nil, nil
}
