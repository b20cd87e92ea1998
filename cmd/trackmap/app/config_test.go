package app

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("trackmap", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseArgs(t *testing.T) {
	c, err := ParseArgs(newFlagSet(), []string{"-db", "flight.sqlite", "-o", "track"})
	require.NoError(t, err)

	assert.Equal(t, "flight.sqlite", c.DBPath)
	assert.Equal(t, int64(0), c.SessionID)
	assert.Equal(t, "track.png", c.OutputFile)
	assert.Equal(t, ImagePNG, c.Format)
	assert.Equal(t, defaultSize, c.Size)
	assert.False(t, c.NoAnnotations)

	c, err = ParseArgs(newFlagSet(), []string{
		"-db", "flight.sqlite", "-s", "3", "-o", "track.jpeg", "-f", "JPG",
		"-size", "400", "-tz", "UTC", "-no-annotations",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), c.SessionID)
	assert.Equal(t, "track.jpeg", c.OutputFile)
	assert.Equal(t, ImageJPEG, c.Format)
	assert.Equal(t, 400, c.Size)
	assert.Equal(t, "UTC", c.Location.String())
	assert.True(t, c.NoAnnotations)
}

func TestParseArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no db", []string{"-o", "track"}},
		{"no output", []string{"-db", "flight.sqlite"}},
		{"negative session", []string{"-db", "flight.sqlite", "-o", "track", "-s", "-1"}},
		{"bad format", []string{"-db", "flight.sqlite", "-o", "track", "-f", "gif"}},
		{"tiny image", []string{"-db", "flight.sqlite", "-o", "track", "-size", "10"}},
		{"bad time zone", []string{"-db", "flight.sqlite", "-o", "track", "-tz", "Mars/Olympus"}},
		{"unknown flag", []string{"-db", "flight.sqlite", "-o", "track", "-verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(newFlagSet(), tt.args)
			assert.Error(t, err)
		})
	}
}
