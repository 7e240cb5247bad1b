// Package shader loads the toy's GPU program: it fetches the vertex and
// fragment sources, translates them for the host GL, compiles and links.
package shader

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Default source locations, relative to the loader base.
const (
	DefaultVertex   = "camera-toy.vert"
	DefaultFragment = "camera-toy.frag"
)

// DefaultBase serves the built-in sources.
const DefaultBase = "embed:///"

//go:embed assets/*.vert assets/*.frag
var assets embed.FS

// Assets returns the built-in shader sources.
func Assets() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

var httpClient = &http.Client{
	Transport: &headerTransport{Transport: http.DefaultTransport},
}

type headerTransport struct {
	Transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "camera-toy")
	return t.Transport.RoundTrip(req)
}

// Sources are the two shader texts of a program.
type Sources struct {
	Vertex   string
	Fragment string
}

// Loader resolves and fetches shader sources. Supported schemes are http,
// https, file and embed.
type Loader struct {
	Base       *url.URL
	Client     *http.Client
	FS         fs.FS
	Translator Translator
}

// NewLoader returns a Loader rooted at base. base may be a URL or a local
// directory; empty means the built-in sources.
func NewLoader(base string, translator Translator) (*Loader, error) {
	u, err := parseBase(base)
	if err != nil {
		return nil, err
	}
	return &Loader{
		Base:       u,
		Client:     httpClient,
		FS:         Assets(),
		Translator: translator,
	}, nil
}

func parseBase(base string) (*url.URL, error) {
	if base == "" {
		base = DefaultBase
	}
	if u, err := url.Parse(base); err == nil && len(u.Scheme) > 1 {
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		return u, nil
	}

	// A plain path; Windows drive letters parse as one-letter schemes.
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("invalid shader base %q: %w", base, err)
	}
	path := filepath.ToSlash(abs)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &url.URL{Scheme: "file", Path: path + "/"}, nil
}

// Resolve resolves ref against the loader base.
func (l *Loader) Resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid shader location %q: %w", ref, err)
	}
	return l.Base.ResolveReference(r), nil
}

// Fetch retrieves both sources concurrently.
func (l *Loader) Fetch(ctx context.Context, vertexRef, fragmentRef string) (*Sources, error) {
	var src Sources
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		src.Vertex, err = l.fetch(ctx, vertexRef)
		return err
	})
	g.Go(func() (err error) {
		src.Fragment, err = l.fetch(ctx, fragmentRef)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &src, nil
}

func (l *Loader) fetch(ctx context.Context, ref string) (string, error) {
	u, err := l.Resolve(ref)
	if err != nil {
		return "", err
	}

	var data []byte
	switch u.Scheme {
	case "http", "https":
		data, err = l.fetchHTTP(ctx, u)
	case "file":
		data, err = os.ReadFile(filepath.FromSlash(u.Path))
	case "embed":
		fsys := l.FS
		if fsys == nil {
			fsys = Assets()
		}
		data, err = fs.ReadFile(fsys, strings.TrimPrefix(u.Path, "/"))
	default:
		err = fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch shader %s: %w", u, err)
	}
	return string(data), nil
}

func (l *Loader) fetchHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = httpClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad response status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
