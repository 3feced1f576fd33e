package photoimport

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Resizer scales src into dst so that it fits inside maxWidth x maxHeight.
type Resizer interface {
	Name() string
	Resize(ctx context.Context, src, dst string, maxWidth, maxHeight, quality int) error
}

// ExecResizer shells out to an ImageMagick-compatible binary.
type ExecResizer struct {
	Binary string
}

// Name returns the binary name.
func (r ExecResizer) Name() string { return r.Binary }

// Available reports whether the binary is on PATH.
func (r ExecResizer) Available() bool {
	if r.Binary == "" {
		return false
	}
	_, err := exec.LookPath(r.Binary)
	return err == nil
}

// Resize runs `<binary> src -resize WxH> -quality Q dst`. Images already smaller
// than the bounds are not enlarged.
func (r ExecResizer) Resize(ctx context.Context, src, dst string, maxWidth, maxHeight, quality int) error {
	cmd := exec.CommandContext(ctx, r.Binary,
		src,
		"-resize", fmt.Sprintf("%dx%d>", maxWidth, maxHeight),
		"-quality", strconv.Itoa(quality),
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", r.Binary, err, msg)
		}
		return fmt.Errorf("%s: %w", r.Binary, err)
	}
	return nil
}
