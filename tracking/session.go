package tracking

import (
	"context"
	"io"
	"os"
	"os/user"
	"time"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
)

// Session is an explicit tracking context: one backend, one logger, one clock.
// It replaces a process-wide "current run" with a handle passed to callers.
type Session struct {
	uri       string
	store     Store
	registry  ModelRegistry
	artifacts ArtifactRepositoryFactory
	log       log.Logger
	now       func() time.Time
	user      string
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry enables model registration.
func WithRegistry(r ModelRegistry) Option {
	return func(s *Session) {
		s.registry = r
	}
}

// WithArtifactFactory sets how run artifact URIs are turned into repositories.
func WithArtifactFactory(f ArtifactRepositoryFactory) Option {
	return func(s *Session) {
		s.artifacts = f
	}
}

// WithLogger sets the session logger.
func WithLogger(l log.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithUser sets the user recorded on new runs.
func WithUser(name string) Option {
	return func(s *Session) {
		s.user = name
	}
}

// NewSession returns a session recording into store.
func NewSession(uri string, store Store, opts ...Option) *Session {
	s := &Session{
		uri:   uri,
		store: store,
		log:   log.GetLogger(),
		now:   time.Now,
		user:  currentUser(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(log.ComponentKey, "tracking", log.TrackingURIKey, uri)
	return s
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// URI returns the tracking URI the session was built from.
func (s *Session) URI() string { return s.uri }

// Store returns the backing store.
func (s *Session) Store() Store { return s.store }

// RegistryEnabled reports whether LogModel can register models.
func (s *Session) RegistryEnabled() bool { return s.registry != nil }

// Close releases backend resources.
func (s *Session) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Session) millis() int64 {
	return s.now().UnixMilli()
}

// SetExperiment returns the active experiment called name, creating it if
// needed. An empty name selects the default experiment.
func (s *Session) SetExperiment(ctx context.Context, name string) (*Experiment, error) {
	if name == "" {
		name = DefaultExperimentName
	}
	exp, err := s.store.GetExperimentByName(ctx, name)
	if err == nil {
		return exp, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrapf(err, "get experiment %q", name)
	}

	id, err := s.store.CreateExperiment(ctx, name, "")
	if err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, errors.Wrapf(err, "create experiment %q", name)
		}
		// Created concurrently by someone else.
		return s.store.GetExperimentByName(ctx, name)
	}
	s.log.Info("Experiment created", log.ExperimentIDKey, id, "experiment.name", name)
	return &Experiment{ID: id, Name: name, LifecycleStage: LifecycleActive}, nil
}

// RunOptions selects where a run is created.
type RunOptions struct {
	// ExperimentName is resolved with SetExperiment when ExperimentID is empty.
	ExperimentName string
	ExperimentID   string
	RunName        string
	Tags           map[string]string
}

// StartRun creates a run and returns it in the active state.
func (s *Session) StartRun(ctx context.Context, opts RunOptions) (*ActiveRun, error) {
	expID := opts.ExperimentID
	if expID == "" {
		exp, err := s.SetExperiment(ctx, opts.ExperimentName)
		if err != nil {
			return nil, err
		}
		expID = exp.ID
	}

	run := &ActiveRun{session: s, state: runNotStarted}
	if err := run.start(ctx, expID, opts); err != nil {
		return nil, err
	}
	return run, nil
}

// Run opens a run, calls fn with it, and closes it. The run is closed FINISHED
// when fn returns nil, KILLED when fn fails after ctx was cancelled, and FAILED
// on any other error or a panic. fn's error is returned unchanged; a failure to
// close the run is joined to it.
func (s *Session) Run(ctx context.Context, opts RunOptions, fn func(ctx context.Context, run *ActiveRun) error) (err error) {
	run, err := s.StartRun(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		status := StatusFinished
		switch {
		case err == nil:
		case ctx.Err() != nil:
			status = StatusKilled
		default:
			status = StatusFailed
		}
		if endErr := run.End(context.WithoutCancel(ctx), status); endErr != nil {
			if err == nil {
				err = endErr
			} else {
				err = errors.Join(err, endErr)
			}
		}
	}()
	defer errors.Recover(&err, "tracking.Run")

	return fn(ctx, run)
}
