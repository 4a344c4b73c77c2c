package dataset

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/ulikunitz/xz"
)

// DefaultURL is the red wine quality dataset from the UCI repository. The
// file is semicolon-separated with a quoted header, so load it with
// Loader.Delimiter set to ';' or the --delimiter ';' flag.
const DefaultURL = "http://archive.ics.uci.edu/ml/machine-learning-databases/wine-quality/winequality-red.csv"

// Loader fetches a CSV dataset from an HTTP(S) URL, a file:// URL, or a local
// path. Sources ending in .gz or .xz are decompressed on the fly.
type Loader struct {
	Client    *http.Client
	Delimiter rune
	Log       log.Logger
}

// NewLoader returns a Loader using http.DefaultClient and the default
// delimiter.
func NewLoader(logger log.Logger) *Loader {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Loader{
		Client:    http.DefaultClient,
		Delimiter: DefaultDelimiter,
		Log:       logger.With(log.ComponentKey, "dataset"),
	}
}

// Load reads source into a Frame. Any fetch or parse failure is returned.
func (l *Loader) Load(ctx context.Context, source string) (*Frame, error) {
	start := time.Now()
	logger := l.logger().With(log.OperationKey, log.OperationLoad, log.SourceKey, source)

	rc, name, err := l.open(ctx, source)
	if err != nil {
		logger.Error("Unable to fetch dataset", log.ErrAttrKey, err)
		return nil, err
	}
	defer rc.Close()

	r, err := decompress(rc, name)
	if err != nil {
		logger.Error("Unable to decompress dataset", log.ErrAttrKey, err)
		return nil, err
	}

	frame, err := ReadCSV(r, l.Delimiter)
	if err != nil {
		logger.Error("Unable to parse dataset", log.ErrAttrKey, err)
		return nil, err
	}

	rows, cols := frame.Dims()
	logger.Info("Dataset loaded",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return frame, nil
}

func (l *Loader) logger() log.Logger {
	if l.Log == nil {
		return log.GetLogger()
	}
	return l.Log
}

// open returns the raw byte stream and the name used for suffix detection.
func (l *Loader) open(ctx context.Context, source string) (io.ReadCloser, string, error) {
	u, err := url.Parse(source)
	if err != nil || len(u.Scheme) <= 1 {
		// Bare paths, including Windows drive letters.
		f, err := os.Open(source)
		if err != nil {
			return nil, "", errors.Wrapf(err, "open dataset %s", source)
		}
		return f, source, nil
	}

	switch u.Scheme {
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, "", errors.Wrapf(err, "open dataset %s", p)
		}
		return f, p, nil
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to create request")
		}
		client := l.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to fetch data")
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, "", errors.Newf("failed to fetch data: %s returned %s", source, resp.Status)
		}
		return resp.Body, u.Path, nil
	default:
		return nil, "", errors.NewValueError("dataset.Load", fmt.Sprintf("unsupported source scheme %q", u.Scheme))
	}
}

func decompress(r io.Reader, name string) (io.Reader, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		return zr, nil
	case ".xz":
		zr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "xz")
		}
		return zr, nil
	default:
		return r, nil
	}
}
