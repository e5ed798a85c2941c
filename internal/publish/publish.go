// Package publish copies finished media to a remote FTP, FTPS or SFTP
// location.
package publish

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Publisher uploads a local file and returns its remote location.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
	Name() string
}

// CredentialFunc looks up a login for host, typically from netrc.
type CredentialFunc func(host string) (login, password string, ok bool)

type options struct {
	timeout         time.Duration
	credentials     CredentialFunc
	privateKey      string
	knownHosts      string
	insecureHostKey bool
	skipTLSVerify   bool
	logger          *zap.Logger
}

// Option configures a Publisher.
type Option func(*options)

// WithTimeout bounds connection setup.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCredentials supplies logins for targets without inline userinfo.
func WithCredentials(fn CredentialFunc) Option {
	return func(o *options) {
		o.credentials = fn
	}
}

// WithPrivateKey uses the given key file for SFTP.
func WithPrivateKey(path string) Option {
	return func(o *options) {
		o.privateKey = path
	}
}

// WithKnownHosts sets the known_hosts file used to check SFTP servers.
func WithKnownHosts(path string) Option {
	return func(o *options) {
		o.knownHosts = path
	}
}

// WithInsecureHostKey accepts any SFTP host key.
func WithInsecureHostKey(insecure bool) Option {
	return func(o *options) {
		o.insecureHostKey = insecure
	}
}

// WithSkipTLSVerify disables certificate checks for FTPS.
func WithSkipTLSVerify(skip bool) Option {
	return func(o *options) {
		o.skipTLSVerify = skip
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns the publisher for target's scheme.
func New(target string, opts ...Option) (Publisher, error) {
	o := options{timeout: 30 * time.Second, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parsing publish target: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("publish target has no host: %s", target)
	}

	switch strings.ToLower(u.Scheme) {
	case "ftp", "ftps":
		return newFTP(u, o), nil
	case "sftp":
		return newSFTP(u, o), nil
	default:
		return nil, fmt.Errorf("unsupported publish scheme %q (want ftp, ftps or sftp)", u.Scheme)
	}
}

// remotePath places the local file name inside the target directory.
func remotePath(dir, localPath string) string {
	if dir == "" {
		dir = "/"
	}
	return path.Join(dir, filepath.Base(localPath))
}

// credentials resolves a login: inline userinfo, then the lookup function.
func credentials(u *url.URL, lookup CredentialFunc) (login, password string) {
	if u.User != nil {
		login = u.User.Username()
		password, _ = u.User.Password()
		if password != "" {
			return login, password
		}
	}
	if lookup != nil {
		if l, p, ok := lookup(u.Hostname()); ok && (login == "" || login == l) {
			return l, p
		}
	}
	return login, password
}

// redact drops the password from a URL for display.
func redact(u *url.URL) string {
	c := *u
	if c.User != nil {
		c.User = url.User(c.User.Username())
	}
	return c.String()
}
