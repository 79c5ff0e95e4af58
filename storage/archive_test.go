package storage

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/Dosada05/pong-arena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUploader struct {
	key         string
	contentType string
	body        []byte
}

func (u *recordingUploader) Upload(_ context.Context, key, contentType string, r io.Reader) (*UploadResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	u.key, u.contentType, u.body = key, contentType, body
	return &UploadResult{Key: key, Location: publicURL("https://cdn.example.com", key)}, nil
}

func (u *recordingUploader) Delete(context.Context, string) error { return nil }

func (u *recordingUploader) GetPublicURL(key string) string { return key }

func TestBracketArchiver_Archive(t *testing.T) {
	winner := 11
	room := &models.TournamentRoom{ID: 12, Name: "Friday Cup!", Status: models.RoomStatusCompleted, WinnerPlayerID: &winner}
	up := &recordingUploader{}

	res, err := NewBracketArchiver(up).Archive(context.Background(), room)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.key, "brackets/12-friday-cup/"), up.key)
	assert.True(t, strings.HasSuffix(up.key, ".json"))
	assert.Equal(t, "application/json", up.contentType)
	assert.Equal(t, "https://cdn.example.com/"+up.key, res.Location)

	var decoded models.TournamentRoom
	require.NoError(t, json.Unmarshal(up.body, &decoded))
	assert.Equal(t, 12, decoded.ID)
	assert.Equal(t, 11, *decoded.WinnerPlayerID)
}

func TestBracketArchiver_RejectsUnfinishedRoom(t *testing.T) {
	up := &recordingUploader{}

	_, err := NewBracketArchiver(up).Archive(context.Background(), &models.TournamentRoom{ID: 1, Status: models.RoomStatusOngoing})

	require.ErrorIs(t, err, models.ErrInvalidState)
	assert.Empty(t, up.key)
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"https://cdn.example.com", "brackets/a.json", "https://cdn.example.com/brackets/a.json"},
		{"https://cdn.example.com/", "/brackets/a.json", "https://cdn.example.com/brackets/a.json"},
		{"https://cdn.example.com/pub", "a.json", "https://cdn.example.com/pub/a.json"},
		{"", "a.json", ""},
		{"https://cdn.example.com", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, publicURL(tt.base, tt.key), "%s + %s", tt.base, tt.key)
	}
}
