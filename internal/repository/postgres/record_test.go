package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/gridbase/internal/models"
)

func TestExpandFileRefs(t *testing.T) {
	known := uuid.New()
	uploaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	resolve := func(id uuid.UUID) *models.FileInfo {
		if id != known {
			return nil
		}
		return &models.FileInfo{
			ID:          known,
			Name:        "report.pdf",
			Size:        2048,
			Mime:        "application/pdf",
			UploadedAt:  uploaded,
			DownloadURL: "/api/files/" + known.String() + "/download",
			ViewURL:     "/api/files/" + known.String() + "/view",
		}
	}

	data := map[string]any{
		"Name":       "Q1 Report",
		"Attachment": map[string]any{"file_id": known.String()},
		"Gallery": []any{
			map[string]any{"file_id": known.String()},
			map[string]any{"file_id": uuid.NewString()},
			"not a ref",
		},
		"Missing":   map[string]any{"file_id": uuid.NewString()},
		"Malformed": map[string]any{"file_id": 42},
		"Plain":     map[string]any{"nested": "value"},
		"Count":     float64(3),
	}

	out := expandFileRefs(data, resolve)

	// Scalars and non-reference maps pass through untouched.
	assert.Equal(t, "Q1 Report", out["Name"])
	assert.Equal(t, float64(3), out["Count"])
	assert.Equal(t, map[string]any{"nested": "value"}, out["Plain"])

	attachment, ok := out["Attachment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, known.String(), attachment["file_id"])
	assert.Equal(t, "report.pdf", attachment["name"])
	assert.Equal(t, int64(2048), attachment["size"])
	assert.Equal(t, "application/pdf", attachment["mime"])
	assert.NotEmpty(t, attachment["download_url"])

	gallery, ok := out["Gallery"].([]any)
	require.True(t, ok)
	require.Len(t, gallery, 3)
	first := gallery[0].(map[string]any)
	assert.Equal(t, "report.pdf", first["name"])
	// The unresolvable reference stays exactly as stored.
	second := gallery[1].(map[string]any)
	assert.NotContains(t, second, "name")
	assert.Equal(t, "not a ref", gallery[2])

	missing := out["Missing"].(map[string]any)
	assert.NotContains(t, missing, "name")
	malformed := out["Malformed"].(map[string]any)
	assert.Equal(t, 42, malformed["file_id"])
}

func TestExpandFileRefsNil(t *testing.T) {
	resolve := func(uuid.UUID) *models.FileInfo { return nil }
	assert.Nil(t, expandFileRefs(nil, resolve))
}

func TestExpandFileRefsDoesNotMutateInput(t *testing.T) {
	known := uuid.New()
	resolve := func(id uuid.UUID) *models.FileInfo {
		return &models.FileInfo{ID: id, Name: "f.txt"}
	}
	data := map[string]any{
		"Attachment": map[string]any{"file_id": known.String()},
	}
	_ = expandFileRefs(data, resolve)

	original := data["Attachment"].(map[string]any)
	assert.NotContains(t, original, "name")
}
