// Package backend builds a tracking.Session from a tracking URI.
package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/tracking"
	"github.com/YuminosukeSato/winequality/tracking/artifact"
	"github.com/YuminosukeSato/winequality/tracking/filestore"
	"github.com/YuminosukeSato/winequality/tracking/rest"
	"github.com/YuminosukeSato/winequality/tracking/sqlstore"
)

// Options tune backend construction. The zero value is usable.
type Options struct {
	// ArtifactRoot is the default artifact root of SQL stores.
	ArtifactRoot string
	// S3Endpoint overrides the S3 endpoint for s3:// artifact URIs.
	S3Endpoint string
	// S3Client replaces the lazily created AWS client.
	S3Client artifact.PutObjectAPI
	// Credentials authenticate against an HTTP tracking server.
	Credentials rest.Credentials
	// HTTPClient is used for HTTP tracking servers; nil uses a default.
	HTTPClient *http.Client
	Logger     log.Logger
	User       string
}

// Open returns a session for uri. Supported schemes are file (and bare
// paths), sqlite, postgres/postgresql, http, and https. Only non-file
// backends get a model registry.
func Open(ctx context.Context, uri string, opts Options) (*tracking.Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	resolver := &artifact.Resolver{S3Endpoint: opts.S3Endpoint}
	if opts.S3Client != nil {
		resolver.WithS3Client(opts.S3Client)
	}
	sessionOpts := []tracking.Option{
		tracking.WithLogger(logger),
		tracking.WithArtifactFactory(resolver.Repository),
	}
	if opts.User != "" {
		sessionOpts = append(sessionOpts, tracking.WithUser(opts.User))
	}

	scheme := tracking.Scheme(uri)
	if i := strings.IndexByte(scheme, '+'); i >= 0 {
		scheme = scheme[:i]
	}

	var store tracking.Store
	switch scheme {
	case "file":
		fs, err := filestore.Open(uri)
		if err != nil {
			return nil, errors.Wrap(err, "open file store")
		}
		store = fs
	case "sqlite", "postgres", "postgresql":
		ss, err := sqlstore.Open(ctx, uri, opts.ArtifactRoot)
		if err != nil {
			return nil, errors.Wrap(err, "open sql store")
		}
		store = ss
		sessionOpts = append(sessionOpts, tracking.WithRegistry(ss))
	case "http", "https":
		client, err := rest.NewClient(uri, opts.Credentials, opts.HTTPClient)
		if err != nil {
			return nil, err
		}
		store = client
		resolver.Proxy = client
		sessionOpts = append(sessionOpts, tracking.WithRegistry(client))
	default:
		return nil, errors.Wrapf(tracking.ErrUnsupportedScheme, "tracking URI %q", uri)
	}

	logger.Debug("Tracking backend opened", log.TrackingURIKey, uri, "tracking.scheme", scheme)
	return tracking.NewSession(uri, store, sessionOpts...), nil
}
