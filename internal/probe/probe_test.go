package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yaroslav/modekeeper/models"
)

func TestScanModes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []models.Mode
	}{
		{"empty", "", nil},
		{"no token", "hello world\n", nil},
		{"status line", "Bot mode: maintenance\nback soon", []models.Mode{models.ModeMaintenance}},
		{"token on later line", "1700000000\nBot mode: stopped\n", []models.Mode{models.ModeStopped}},
		{"hand edited", "please stay killed\nnormal later", []models.Mode{models.ModeKilled, models.ModeNormal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanModes(tt.content))
		})
	}
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "Bot mode: stopped\nshutting down", FormatStatus(models.ModeStopped, "shutting down"))
	assert.Equal(t, "Bot mode: normal\n", FormatStatus(models.ModeNormal, ""))
}

func TestStampHeartbeat(t *testing.T) {
	now := time.Unix(1700000123, 0)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", "1700000123\n"},
		{"numeric first line", "1000\n", "1700000123\n"},
		{"numeric first line keeps rest", "1000\nBot mode: normal\nhi\n", "1700000123\nBot mode: normal\nhi\n"},
		{"numeric without newline", "1000", "1700000123\n"},
		{"non numeric first line", "hello\n", "1700000123\nhello\n"},
		{"status first line", "Bot mode: maintenance\ntext", "1700000123\nBot mode: maintenance\ntext"},
		{"padded number", " 42 \nx", "1700000123\nx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StampHeartbeat(tt.content, now))
		})
	}
}
