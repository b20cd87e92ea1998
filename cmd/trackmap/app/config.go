package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultSize = 800
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     int64 // zero selects the most recent session
	OutputFile    string
	Format        ImageFormat
	Size          int // side of the plot area in pixels
	Location      *time.Location
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Size:     defaultSize,
		Location: time.Local,
	}
}

// NewConfigFromCLI builds the configuration from the command line flags
func NewConfigFromCLI() (*Config, error) {
	return ParseArgs(flag.CommandLine, os.Args[1:])
}

// ParseArgs builds the configuration from args using fs
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, timeZone string
	fs.StringVar(&c.DBPath, "db", "", "Path to the flight log database file")
	fs.Int64Var(&c.SessionID, "s", 0, "Session ID, the most recent session when omitted")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.IntVar(&c.Size, "size", defaultSize, "Size of the plot area in pixels")
	fs.StringVar(&timeZone, "tz", "", "Time zone of the timestamps in the info bar, local time when omitted")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as scales and the info bar")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)
	if imageFormat == "jpg" {
		imageFormat = string(ImageJPEG)
	}

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID < 0 {
		err = fmt.Errorf("invalid session id: %d", c.SessionID)
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.Size < 100 {
		err = fmt.Errorf("image size is too small: %d", c.Size)
	} else if timeZone != "" {
		if c.Location, err = time.LoadLocation(timeZone); err != nil {
			err = fmt.Errorf("invalid time zone: %w", err)
		}
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	if !strings.HasSuffix(c.OutputFile, "."+imageFormat) {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}
	return c, nil
}
