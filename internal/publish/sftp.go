package publish

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type sftpPublisher struct {
	target *url.URL
	opts   options
}

func newSFTP(u *url.URL, o options) *sftpPublisher {
	return &sftpPublisher{target: u, opts: o}
}

func (p *sftpPublisher) Name() string {
	return redact(p.target)
}

func (p *sftpPublisher) address() string {
	if p.target.Port() != "" {
		return p.target.Host
	}
	return net.JoinHostPort(p.target.Hostname(), "22")
}

func (p *sftpPublisher) clientConfig() (*ssh.ClientConfig, error) {
	login, password := credentials(p.target, p.opts.credentials)
	if login == "" {
		login = os.Getenv("USER")
		if login == "" {
			login = os.Getenv("USERNAME")
		}
	}

	var auth []ssh.AuthMethod
	if signer := p.loadKey(); signer != nil {
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if password != "" {
		auth = append(auth, ssh.Password(password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH key or password available for %s", p.target.Host)
	}

	hostKey, err := p.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            login,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         p.opts.timeout,
	}, nil
}

// loadKey returns the configured key, or the first default key that parses.
func (p *sftpPublisher) loadKey() ssh.Signer {
	paths := []string{p.opts.privateKey}
	if p.opts.privateKey == "" {
		home, _ := os.UserHomeDir()
		paths = []string{
			filepath.Join(home, ".ssh", "id_ed25519"),
			filepath.Join(home, ".ssh", "id_rsa"),
			filepath.Join(home, ".ssh", "id_ecdsa"),
		}
	}
	for _, keyPath := range paths {
		data, err := os.ReadFile(keyPath)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			p.opts.logger.Debug("skipping SSH key", zap.String("path", keyPath), zap.Error(err))
			continue
		}
		return signer
	}
	return nil
}

func (p *sftpPublisher) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if p.opts.insecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := p.opts.knownHosts
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating known_hosts: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts: %w", err)
	}
	return cb, nil
}

func (p *sftpPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	local, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer local.Close()

	cfg, err := p.clientConfig()
	if err != nil {
		return "", err
	}

	dialer := net.Dialer{Timeout: p.opts.timeout}
	nc, err := dialer.DialContext(ctx, "tcp", p.address())
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", p.target.Host, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(nc, p.address(), cfg)
	if err != nil {
		nc.Close()
		return "", fmt.Errorf("SSH handshake: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	sc, err := sftp.NewClient(client)
	if err != nil {
		return "", fmt.Errorf("SFTP session: %w", err)
	}
	defer sc.Close()

	remote := remotePath(p.target.Path, localPath)
	if err := sc.MkdirAll(path.Dir(remote)); err != nil {
		return "", fmt.Errorf("creating %s: %w", path.Dir(remote), err)
	}

	dst, err := sc.Create(remote)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", remote, err)
	}
	if _, err := io.Copy(dst, local); err != nil {
		dst.Close()
		return "", fmt.Errorf("uploading to %s: %w", remote, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", remote, err)
	}

	location := (&url.URL{Scheme: "sftp", Host: p.target.Host, Path: remote}).String()
	p.opts.logger.Info("published", zap.String("file", localPath), zap.String("to", location))
	return location, nil
}
