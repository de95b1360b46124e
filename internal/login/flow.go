// Package login runs a single login attempt: timing capture, backend scoring,
// pacing, interpretation and upstream reporting.
package login

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/verte-zerg/shadowshield/internal/backend"
	"github.com/verte-zerg/shadowshield/internal/keystroke"
	"github.com/verte-zerg/shadowshield/internal/logging"
	"github.com/verte-zerg/shadowshield/internal/model"
)

// DefaultPacing is the delay between a backend reply and revealing the result.
const DefaultPacing = 3 * time.Second

// ErrInFlight is returned when Submit is called while an attempt is running.
var ErrInFlight = errors.New("login attempt already in progress")

// Scorer is the backend login call.
type Scorer interface {
	Login(ctx context.Context, body backend.LoginRequest) (backend.LoginResponse, error)
}

// Report describes one completed attempt. It never carries the password.
type Report struct {
	Status      model.OutcomeStatus
	Username    string
	VectorValid bool
}

// Reporter receives the outcome of each completed attempt.
type Reporter interface {
	ReportLogin(r Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(r Report)

// ReportLogin calls f.
func (f ReporterFunc) ReportLogin(r Report) {
	f(r)
}

// Flow submits login attempts. It is safe to call from a goroutine other than
// the one feeding the capture.
type Flow struct {
	scorer   Scorer
	capture  *keystroke.Capture
	reporter Reporter
	pacing   time.Duration
	sleep    func(context.Context, time.Duration) error
	log      *logging.Logger

	inFlight atomic.Bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithPacing overrides the reveal delay. Zero disables it.
func WithPacing(d time.Duration) Option {
	return func(f *Flow) {
		f.pacing = d
	}
}

// WithSleep replaces the pacing wait. The sleeper returns early with the
// context error when ctx ends first.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Flow) {
		f.sleep = sleep
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *Flow) {
		f.log = l
	}
}

// New builds a Flow.
func New(scorer Scorer, capture *keystroke.Capture, reporter Reporter, opts ...Option) *Flow {
	f := &Flow{
		scorer:   scorer,
		capture:  capture,
		reporter: reporter,
		pacing:   DefaultPacing,
		sleep:    sleepContext,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InFlight reports whether an attempt is running.
func (f *Flow) InFlight() bool {
	return f.inFlight.Load()
}

// Submit runs one attempt. On error nothing is reported upstream and the
// session counter is untouched. The capture is reset on every path.
func (f *Flow) Submit(ctx context.Context, username, password string) (model.LoginOutcome, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return model.LoginOutcome{}, ErrInFlight
	}
	defer f.inFlight.Store(false)
	defer f.capture.Reset()

	vec := f.capture.Vector()
	f.log.Debug("submitting login", "user", username, "vector_valid", vec.Valid())

	resp, err := f.scorer.Login(ctx, backend.NewLoginRequest(username, password, vec))
	if err != nil {
		f.log.Error("login request failed", "err", err)
		return model.LoginOutcome{}, fmt.Errorf("failed to reach backend: %w", err)
	}

	if f.pacing > 0 {
		if err := f.sleep(ctx, f.pacing); err != nil {
			f.log.Info("login attempt cancelled during pacing", "err", err)
			return model.LoginOutcome{}, fmt.Errorf("login attempt cancelled: %w", err)
		}
	}

	outcome := Interpret(resp)
	f.log.Info("login outcome", "status", outcome.Status,
		"anomaly_keystroke", outcome.KeystrokeAnomaly, "anomaly_time", outcome.TimeAnomaly)
	if f.reporter != nil {
		f.reporter.ReportLogin(Report{Status: outcome.Status, Username: username, VectorValid: vec.Valid()})
	}
	return outcome, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interpret maps a backend reply onto an outcome.
func Interpret(resp backend.LoginResponse) model.LoginOutcome {
	if resp.Status == "success" {
		return model.LoginOutcome{Status: model.OutcomeSuccess}
	}
	if resp.AnomalyDetected {
		return model.LoginOutcome{
			Status:           model.OutcomeAnomaly,
			KeystrokeAnomaly: resp.AnomalyKeystroke,
			TimeAnomaly:      resp.AnomalyTime,
		}
	}
	return model.LoginOutcome{Status: model.OutcomeFailed}
}

// AnomalyReasons lists the sub-reasons that fired for an anomaly outcome.
func AnomalyReasons(o model.LoginOutcome) []string {
	if o.Status != model.OutcomeAnomaly {
		return nil
	}
	var reasons []string
	if o.KeystrokeAnomaly {
		reasons = append(reasons, "Keystroke pattern mismatch")
	}
	if o.TimeAnomaly {
		reasons = append(reasons, "Unusual login time")
	}
	return reasons
}
