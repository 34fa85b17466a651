// Package image identifies encoded images by their header bytes.
package image

import (
	"bufio"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/Laisky/errors/v2"
	_ "golang.org/x/image/webp"
)

// Config is the decoded header of an image.
type Config struct {
	MIMEType string
	Width    int
	Height   int
}

// Sniff decodes only the image header from r.
func Sniff(r io.Reader) (Config, error) {
	cfg, format, err := image.DecodeConfig(bufio.NewReader(r))
	if err != nil {
		return Config{}, errors.Wrap(err, "decode image config")
	}
	return Config{
		MIMEType: "image/" + format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// SniffFile is Sniff over the file at path.
func SniffFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Sniff(f)
}
