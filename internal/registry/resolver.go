// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"

	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/issue"
	"github.com/mlforge/mlforge/pkg/forgefile"
)

// Defaults for digest resolution against the registry HTTP API.
const (
	defaultResolveAttempts = 3
	defaultResolveBackoff  = 500 * time.Millisecond
)

// ErrDigestUnresolvable indicates the registry could not tell us the
// digest behind a reference: the repository is missing, authentication
// failed, or the registry stayed unreachable across retries.
var ErrDigestUnresolvable = errors.New("cannot resolve image digest")

type (
	// Resolver resolves floating image references to immutable manifest
	// digests with a HEAD request, so pinning never pulls layer data.
	// Lookups authenticate through the ambient keychain by default.
	Resolver struct {
		keychain    authn.Keychain
		transport   http.RoundTripper
		maxAttempts int
		baseBackoff time.Duration
	}

	// ResolverOption configures a Resolver.
	ResolverOption func(*Resolver)
)

// NewResolver creates a Resolver with default settings, applying any
// provided options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		keychain:    authn.DefaultKeychain,
		maxAttempts: defaultResolveAttempts,
		baseBackoff: defaultResolveBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithKeychain overrides the credential source used for registry auth.
func WithKeychain(keychain authn.Keychain) ResolverOption {
	return func(r *Resolver) {
		if keychain != nil {
			r.keychain = keychain
		}
	}
}

// WithTransport overrides the HTTP transport used for registry requests.
func WithTransport(rt http.RoundTripper) ResolverOption {
	return func(r *Resolver) {
		r.transport = rt
	}
}

// WithMaxAttempts sets how many times a transient registry failure is
// attempted before giving up. Values below 1 are ignored.
func WithMaxAttempts(attempts int) ResolverOption {
	return func(r *Resolver) {
		if attempts >= 1 {
			r.maxAttempts = attempts
		}
	}
}

// WithBaseBackoff sets the backoff before the first retry; later retries
// double it. Non-positive values are ignored.
func WithBaseBackoff(backoff time.Duration) ResolverOption {
	return func(r *Resolver) {
		if backoff > 0 {
			r.baseBackoff = backoff
		}
	}
}

// ResolveDigest resolves ref to the manifest digest the registry
// currently serves for it. Throttling, server-side errors, and network
// resets are retried with exponential backoff; missing repositories and
// rejected credentials fail immediately.
func (r *Resolver) ResolveDigest(ctx context.Context, ref string) (forgefile.ImageDigest, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", ref, err)
	}

	var desc *v1.Descriptor
	err = container.RetryWithBackoff(ctx, r.maxAttempts, r.baseBackoff, func(int) (bool, error) {
		d, headErr := remote.Head(parsed, r.remoteOptions(ctx)...)
		if headErr != nil {
			return isTransientRegistryError(headErr), headErr
		}
		desc = d
		return false, nil
	})
	if err != nil {
		return "", unresolvableError(ref, err)
	}

	digest := forgefile.ImageDigest(desc.Digest.String())
	if err := digest.Validate(); err != nil {
		return "", unresolvableError(ref, err)
	}
	return digest, nil
}

func (r *Resolver) remoteOptions(ctx context.Context) []remote.Option {
	opts := []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(r.keychain),
	}
	if r.transport != nil {
		opts = append(opts, remote.WithTransport(r.transport))
	}
	return opts
}

// isTransientRegistryError reports whether a lookup failure is worth
// retrying. Registry throttling and server-side errors are; so are
// network-level failures like refused connections and resets. Missing
// manifests and authentication failures are final.
func isTransientRegistryError(err error) bool {
	var terr *transport.Error
	if errors.As(err, &terr) {
		return terr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func unresolvableError(ref string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("resolve image digest").
		WithResource(ref).
		WithSuggestion("Check the reference spelling and that the registry is reachable from this machine").
		WithSuggestion("Authenticate first if the repository is private (try: docker login)").
		Wrap(fmt.Errorf("%w: %w", ErrDigestUnresolvable, cause)).
		BuildError()
}
