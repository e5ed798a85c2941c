package publish

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"os"
	"path"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"
)

type ftpPublisher struct {
	target *url.URL
	opts   options
}

func newFTP(u *url.URL, o options) *ftpPublisher {
	return &ftpPublisher{target: u, opts: o}
}

func (p *ftpPublisher) Name() string {
	return redact(p.target)
}

func (p *ftpPublisher) address() string {
	if p.target.Port() != "" {
		return p.target.Host
	}
	return p.target.Host + ":21"
}

func (p *ftpPublisher) dialOptions(ctx context.Context) []ftp.DialOption {
	dialOpts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(p.opts.timeout),
	}

	if p.target.Scheme == "ftps" {
		tlsConfig := &tls.Config{
			ServerName:         p.target.Hostname(),
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: p.opts.skipTLSVerify,
		}
		if p.target.Port() == "990" {
			dialOpts = append(dialOpts, ftp.DialWithTLS(tlsConfig))
		} else {
			dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(tlsConfig))
		}
	}
	return dialOpts
}

func (p *ftpPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	conn, err := ftp.Dial(p.address(), p.dialOptions(ctx)...)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", p.target.Host, err)
	}
	defer conn.Quit()

	login, password := credentials(p.target, p.opts.credentials)
	if login == "" {
		login, password = "anonymous", "anonymous@"
	}
	if err := conn.Login(login, password); err != nil {
		return "", fmt.Errorf("FTP login: %w", err)
	}

	remote := remotePath(p.target.Path, localPath)
	if dir := path.Dir(remote); dir != "/" {
		// Fails harmlessly when the directory already exists.
		_ = conn.MakeDir(dir)
	}

	if err := conn.Stor(remote, f); err != nil {
		return "", fmt.Errorf("uploading to %s: %w", remote, err)
	}

	location := (&url.URL{Scheme: p.target.Scheme, Host: p.target.Host, Path: remote}).String()
	p.opts.logger.Info("published", zap.String("file", localPath), zap.String("to", location))
	return location, nil
}
