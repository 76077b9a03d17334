package shipper

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

var osHostname = os.Hostname

// Sender delivers one matched line.
type Sender interface {
	Send(ctx context.Context, line string, at time.Time) error
}

// Shipper glues a source, a matcher and a sender. Delivery failures are
// logged and the line is dropped.
type Shipper struct {
	Logger  *zap.Logger
	Source  Source
	Matcher *Matcher
	Sender  Sender
}

func New(logger *zap.Logger, src Source, m *Matcher, s Sender) *Shipper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shipper{Logger: logger, Source: src, Matcher: m, Sender: s}
}

func (s *Shipper) Run(ctx context.Context) error {
	s.Logger.Info("shipper_started", zap.String("source", s.Source.Name()))
	err := s.Source.Run(ctx, func(line string) {
		kw, ok := s.Matcher.Match(line)
		if !ok {
			return
		}
		if err := s.Sender.Send(ctx, line, time.Now()); err != nil {
			s.Logger.Warn("shipper_send_failed", zap.String("keyword", kw), zap.Error(err))
			return
		}
		s.Logger.Info("shipper_sent", zap.String("keyword", kw), zap.String("line", line))
	})
	if err != nil {
		s.Logger.Error("shipper_source_failed", zap.String("source", s.Source.Name()), zap.Error(err))
		return err
	}
	s.Logger.Info("shipper_stopped")
	return nil
}
