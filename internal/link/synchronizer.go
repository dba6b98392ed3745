package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/history"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/moonraker"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
)

// MethodMalformedFrame names diagnostic entries recorded for dropped frames.
const MethodMalformedFrame = "malformed_frame"

var errStaleEpoch = errors.New("subscription superseded")

// synchronizer keeps the store in step with the printer: it subscribes on every
// new connection and on klippy_ready, then merges status deltas in arrival order.
type synchronizer struct {
	log     *slog.Logger
	corr    *correlator
	store   *state.Store
	diag    *history.Diagnostics
	console *history.Console

	objects []string
	timeout time.Duration
	retry   time.Duration
}

// online starts the handshake for a fresh connection.
func (s *synchronizer) online(ctx context.Context) {
	s.resync(ctx, s.store.Epoch())
}

// resync runs the handshake for epoch, retrying while the epoch is current and
// the connection is alive.
func (s *synchronizer) resync(ctx context.Context, epoch uint64) {
	for {
		err := s.handshake(ctx, epoch)
		switch {
		case err == nil:
			return
		case errors.Is(err, errStaleEpoch):
			s.log.Debug("handshake superseded", "epoch", epoch)
			return
		case ctx.Err() != nil:
			return
		}

		var appErr *ApplicationError
		if errors.As(err, &appErr) {
			s.log.Info("printer not ready, retrying subscribe", "error", appErr.Message, "retry", s.retry)
		} else {
			s.log.Warn("subscribe failed", "error", err, "retry", s.retry)
		}

		timer := time.NewTimer(s.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if s.store.Epoch() != epoch {
			return
		}
	}
}

// handshake lists objects, subscribes to the interesting ones and installs the
// returned status as the full snapshot for epoch. The install happens on the
// dispatch goroutine as the subscribe response is handled, ahead of any delta
// that follows it.
func (s *synchronizer) handshake(ctx context.Context, epoch uint64) error {
	raw, err := s.corr.call(ctx, moonraker.MethodObjectsList, nil, s.timeout, nil)
	if err != nil {
		return err
	}
	var list moonraker.ObjectList
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("%s: decode result: %w", moonraker.MethodObjectsList, err)
	}
	if s.store.Epoch() != epoch {
		return errStaleEpoch
	}

	names := s.selectObjects(list.Objects)
	var installErr error
	_, err = s.corr.call(ctx, moonraker.MethodObjectsSubscribe, moonraker.NewSubscribeParams(names), s.timeout,
		func(result json.RawMessage, err error) {
			if err != nil {
				return
			}
			installErr = s.install(epoch, result)
		})
	if err != nil {
		return err
	}
	if installErr != nil {
		return installErr
	}
	s.log.Info("subscribed", "objects", len(names), "epoch", epoch)
	return nil
}

func (s *synchronizer) install(epoch uint64, result json.RawMessage) error {
	var res moonraker.SubscribeResult
	if err := json.Unmarshal(result, &res); err != nil {
		return fmt.Errorf("%s: decode result: %w", moonraker.MethodObjectsSubscribe, err)
	}
	objects, err := state.DecodeObjects(res.Status)
	if err != nil {
		return fmt.Errorf("%s: %w", moonraker.MethodObjectsSubscribe, err)
	}
	if !s.store.Replace(epoch, objects) {
		return errStaleEpoch
	}
	return nil
}

// selectObjects keeps the configured objects the printer actually has, in
// configured order. With nothing configured every available object is used.
func (s *synchronizer) selectObjects(available []string) []string {
	if len(s.objects) == 0 {
		return available
	}
	selected := lo.Filter(s.objects, func(name string, _ int) bool {
		return lo.Contains(available, name)
	})
	if missing := lo.Without(s.objects, available...); len(missing) > 0 {
		s.log.Debug("configured objects not present", "objects", missing)
	}
	return selected
}

// dispatch handles one inbound frame on the reader goroutine.
func (s *synchronizer) dispatch(ctx context.Context, data []byte) {
	frame, err := moonraker.DecodeFrame(data)
	if err != nil {
		s.malformed(err)
		return
	}

	switch frame.Kind() {
	case moonraker.KindResponse:
		s.corr.handleResponse(frame)
	case moonraker.KindRequest:
		s.log.Debug("ignoring server request", "method", frame.Method)
	case moonraker.KindNotification:
		s.notification(ctx, frame)
	}
}

func (s *synchronizer) notification(ctx context.Context, frame moonraker.Frame) {
	switch frame.Method {
	case moonraker.NotifyStatusUpdate:
		raw, _, err := moonraker.StatusUpdate(frame.Params)
		if err != nil {
			s.malformed(err)
			return
		}
		delta, err := state.DecodeObjects(raw)
		if err != nil {
			s.malformed(err)
			return
		}
		if !s.store.Merge(delta) {
			s.log.Debug("discarding delta before full replace", "objects", len(delta))
		}

	case moonraker.NotifyGCodeResponse:
		lines, err := moonraker.GCodeResponse(frame.Params)
		if err != nil {
			s.malformed(err)
			return
		}
		for _, line := range lines {
			kind := history.KindResponse
			if strings.HasPrefix(line, "!!") {
				kind = history.KindError
			}
			s.console.Append(line, kind)
		}

	case moonraker.NotifyKlippyReady:
		s.console.Append("Klippy ready", history.KindInfo)
		epoch := s.store.Invalidate("")
		go s.resync(ctx, epoch)

	case moonraker.NotifyKlippyShutdown:
		s.console.Append("Klippy shutdown", history.KindError)
		s.store.SetStatus(state.StatusShutdown, "Klippy shutdown")

	case moonraker.NotifyKlippyDisconnected:
		s.console.Append("Klippy disconnected", history.KindInfo)
		s.store.Invalidate(state.StatusDisconnected)

	default:
		s.log.Debug("ignoring notification", "method", frame.Method)
	}
}

func (s *synchronizer) malformed(err error) {
	err = fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	s.diag.Event(MethodMalformedFrame, err)
	s.log.Debug("dropping frame", "error", err)
}
