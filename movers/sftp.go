package movers

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/aistore/movefabric/urlutil"
)

func init() {
	Register("sftp", func() Mover { return NewSFTPMover() })
}

type sftpConn struct {
	ssh    *ssh.Client
	client *sftp.Client
}

// SFTPMover copies over SFTP, pooling one ssh+sftp client pair per
// (host, port, user).
type SFTPMover struct {
	pool *Pool[*sftpConn]
}

func NewSFTPMover() *SFTPMover {
	return &SFTPMover{
		pool: NewPool[*sftpConn](30*time.Second, func(c *sftpConn) {
			c.client.Close()
			c.ssh.Close()
		}),
	}
}

func dialSFTP(host, port, user string, p Params) (*sftpConn, error) {
	cfg := &ssh.ClientConfig{
		User:            user,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}
	if p.SSHKeyFilename != "" {
		key, err := os.ReadFile(p.SSHKeyFilename)
		if err != nil {
			return nil, fmt.Errorf("sftp: read key %s: %w", p.SSHKeyFilename, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sftp: parse key: %w", err)
		}
		cfg.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	}
	sc, err := ssh.Dial("tcp", fmt.Sprintf("%s:%s", host, port), cfg)
	if err != nil {
		return nil, err
	}
	cl, err := sftp.NewClient(sc)
	if err != nil {
		sc.Close()
		return nil, err
	}
	return &sftpConn{ssh: sc, client: cl}, nil
}

// next_destination rewrites destination.netloc to the first backup host on
// connect failure, per design note "Backup-target loop" — a pure function
// over (current, backups) so the retry sequence is testable in isolation.
func next_destination(current *url.URL, backups []string) (*url.URL, []string) {
	if len(backups) == 0 {
		return current, backups
	}
	next := *current
	next.Host = backups[0]
	return &next, backups[1:]
}

func (m *SFTPMover) Copy(_ context.Context, origin, destination string, p Params) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("sftp: parse destination: %w", err)
	}
	backups := p.BackupTargets
	var lastErr error
	for attempt := 0; attempt < 3*(1+len(p.BackupTargets)); attempt++ {
		host := u.Hostname()
		port := u.Port()
		if port == "" {
			port = "22"
		}
		user := p.Login
		if u.User != nil {
			user = u.User.Username()
		}

		conn, ok := m.pool.Get(host, port, user)
		if !ok {
			conn, lastErr = dialSFTP(host, port, user, p)
			if lastErr != nil {
				if attempt%3 == 2 {
					u, backups = next_destination(u, backups)
				}
				continue
			}
		}

		destPath := DestPath(u.Path, origin)
		if err := conn.client.MkdirAll(path.Dir(destPath)); err != nil {
			m.pool.Put(host, port, user, conn)
			return "", fmt.Errorf("sftp: mkdir %s: %w", path.Dir(destPath), err)
		}
		f, err := os.Open(origin)
		if err != nil {
			m.pool.Put(host, port, user, conn)
			return "", err
		}
		out, err := conn.client.Create(destPath)
		if err != nil {
			f.Close()
			m.pool.Put(host, port, user, conn)
			return "", fmt.Errorf("sftp: create %s: %w", destPath, err)
		}
		_, cpErr := out.ReadFrom(f)
		f.Close()
		out.Close()
		m.pool.Put(host, port, user, conn)
		if cpErr != nil {
			return "", fmt.Errorf("sftp: write %s: %w", destPath, cpErr)
		}
		clean := *u
		clean.User = nil
		clean.Path = destPath
		return urlutil.Clean(clean.String()), nil
	}
	return "", fmt.Errorf("sftp: connect %s failed after retries and backups: %w", destination, lastErr)
}

func (m *SFTPMover) Move(ctx context.Context, origin, destination string, p Params) (string, error) {
	dst, err := m.Copy(ctx, origin, destination, p)
	if err != nil {
		return "", err
	}
	os.Remove(origin)
	return dst, nil
}
