package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/drone-navigator/internal/storage"
)

// ErrNoSessions is returned when the flight log holds no sessions
var ErrNoSessions = errors.New("no sessions in flight log")

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	data, err := readTrack(ctx, store, config.SessionID)
	if err != nil {
		return err
	}

	logger.Info("finished reading track",
		slog.Group("stats",
			slog.Int64("session", data.Session.ID),
			slog.String("run", data.Session.RunID),
			slog.String("start", data.Start.In(config.Location).Format(time.DateTime)),
			slog.String("end", data.End.In(config.Location).Format(time.DateTime)),
			slog.String("snapshots", humanize.Comma(data.Stats.Snapshots)),
			slog.String("reports", humanize.Comma(data.Stats.Reports)),
			slog.String("minAltitude", fmt.Sprintf("%0.2fm", data.MinZ)),
			slog.String("maxAltitude", fmt.Sprintf("%0.2fm", data.MaxZ)),
		))

	renderer := NewTrackRenderer(RenderConfig{
		Size:          config.Size,
		Location:      config.Location,
		NoAnnotations: config.NoAnnotations,
	})

	logger.Info("rendering track",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("size", config.Size),
		))

	img, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering track: %w", err)
	}

	return writeImage(config.OutputFile, config.Format, img)
}

// readTrack loads the session with its track and reports, the most recent
// session when sessionID is zero
func readTrack(ctx context.Context, store storage.Store, sessionID int64) (*TrackData, error) {
	var session *storage.Session
	if sessionID == 0 {
		sessions, err := store.Sessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading sessions: %w", err)
		}
		if len(sessions) == 0 {
			return nil, ErrNoSessions
		}
		session = sessions[len(sessions)-1]
	} else {
		var err error
		if session, err = store.Session(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("reading session: %w", err)
		}
	}

	track, err := store.Track(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("reading track: %w", err)
	}
	if len(track) == 0 {
		return nil, fmt.Errorf("session %d has no telemetry", session.ID)
	}

	reports, err := store.Reports(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("reading reports: %w", err)
	}

	stats, err := store.Stats(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	return NewTrackData(session, stats, track, reports), nil
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", closeErr)
		}
	}()

	switch format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})

	default:
		err = fmt.Errorf("invalid image format: %s", format)
	}
	return err
}
