package shipper

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// DefaultFiles are tried in order; the first existing one is tailed.
var DefaultFiles = []string{
	"/var/log/auth.log", // Debian/Ubuntu
	"/var/log/secure",   // RHEL/CentOS
	"/var/log/syslog",
	"/var/log/messages",
}

// Source produces log lines until ctx is cancelled or it fails.
type Source interface {
	Run(ctx context.Context, emit func(line string)) error
	Name() string
}

// ChooseSource picks the first existing candidate file and falls back to
// the systemd journal.
func ChooseSource(candidates []string, poll time.Duration, logger *zap.Logger) Source {
	if len(candidates) == 0 {
		candidates = DefaultFiles
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return &Follower{Path: p, Poll: poll, Logger: logger}
		}
	}
	return &Journal{Logger: logger}
}

// Follower tails a file like tail -F: it starts at the end, waits for new
// data and reopens the file when it is rotated or truncated.
type Follower struct {
	Path      string
	Poll      time.Duration
	FromStart bool
	Logger    *zap.Logger
}

func (f *Follower) Name() string { return "file:" + f.Path }

func (f *Follower) Run(ctx context.Context, emit func(string)) error {
	log := f.Logger
	if log == nil {
		log = zap.NewNop()
	}
	poll := f.Poll
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	fh, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer func() { _ = fh.Close() }()

	var offset int64
	if !f.FromStart {
		if offset, err = fh.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seek %s: %w", f.Path, err)
		}
	}

	r := bufio.NewReader(fh)
	var partial []byte
	for {
		chunk, err := r.ReadBytes('\n')
		offset += int64(len(chunk))
		if err == nil {
			line := append(partial, chunk[:len(chunk)-1]...)
			partial = nil
			emit(trimCR(string(line)))
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("read %s: %w", f.Path, err)
		}
		partial = append(partial, chunk...)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(poll):
		}

		reopen, err := f.rotated(fh, offset)
		if err != nil {
			log.Debug("follower_stat_error", zap.String("path", f.Path), zap.Error(err))
			continue
		}
		if reopen {
			nfh, err := os.Open(f.Path)
			if err != nil {
				log.Debug("follower_reopen_error", zap.String("path", f.Path), zap.Error(err))
				continue
			}
			log.Info("follower_reopened", zap.String("path", f.Path))
			_ = fh.Close()
			fh = nfh
			r.Reset(fh)
			offset = 0
			partial = nil
		}
	}
}

// rotated reports whether the path now points at a different file, or the
// open file shrank below what was already read.
func (f *Follower) rotated(fh *os.File, offset int64) (bool, error) {
	pathInfo, err := os.Stat(f.Path)
	if err != nil {
		return false, err
	}
	openInfo, err := fh.Stat()
	if err != nil {
		return true, nil
	}
	if !os.SameFile(pathInfo, openInfo) {
		return true, nil
	}
	return openInfo.Size() < offset, nil
}

func trimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}

// Journal reads `journalctl -f -o cat`.
type Journal struct {
	Command []string
	Logger  *zap.Logger
}

func (j *Journal) Name() string { return "journal" }

func (j *Journal) Run(ctx context.Context, emit func(string)) error {
	args := j.Command
	if len(args) == 0 {
		args = []string{"journalctl", "-f", "-o", "cat"}
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("journal pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", args[0], err)
	}

	sc := bufio.NewScanner(out)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		emit(sc.Text())
	}
	scanErr := sc.Err()
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if scanErr != nil {
		return fmt.Errorf("read journal: %w", scanErr)
	}
	if waitErr != nil {
		return fmt.Errorf("%s exited: %w", args[0], waitErr)
	}
	return nil
}
