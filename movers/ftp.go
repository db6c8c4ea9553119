package movers

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/aistore/movefabric/urlutil"
)

func init() {
	Register("ftp", func() Mover { return NewFTPMover() })
}

// FTPMover copies over FTP, pooling one connection per (host, port, user)
// per the Connection pool invariant. It logs in with the URL's user and
// password; without a URL user it logs in as Params.Login with an empty
// password, and with neither it sends no login at all. No .netrc file is
// read.
type FTPMover struct {
	pool *Pool[*ftp.ServerConn]
}

func NewFTPMover() *FTPMover {
	return &FTPMover{
		pool: NewPool[*ftp.ServerConn](30*time.Second, func(c *ftp.ServerConn) { c.Quit() }),
	}
}

func (m *FTPMover) connect(destination string, p Params) (*ftp.ServerConn, string, string, string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return nil, "", "", "", fmt.Errorf("ftp: parse destination: %w", err)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "21"
	}
	user := ""
	pass := ""
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	if user == "" && p.Login != "" {
		user = p.Login
	}

	if c, ok := m.pool.Get(host, port, user); ok {
		if err := c.NoOp(); err == nil {
			return c, host, port, user, nil
		}
		c.Quit()
	}

	c, err := ftp.Dial(fmt.Sprintf("%s:%s", host, port), ftp.DialWithTimeout(15*time.Second))
	if err != nil {
		return nil, host, port, user, err
	}
	if user != "" {
		if err := c.Login(user, pass); err != nil {
			c.Quit()
			return nil, host, port, user, err
		}
	}
	return c, host, port, user, nil
}

func (m *FTPMover) Copy(_ context.Context, origin, destination string, p Params) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("ftp: parse destination: %w", err)
	}
	c, host, port, user, err := m.connect(destination, p)
	if err != nil {
		return "", err
	}
	defer m.pool.Put(host, port, user, c)

	destPath := DestPath(u.Path, origin)
	if err := c.MakeDir(path.Dir(destPath)); err != nil {
		// already exists is not fatal; MakeDir has no idempotent flag
	}
	f, err := os.Open(origin)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := c.Stor(destPath, f); err != nil {
		return "", fmt.Errorf("ftp: stor %s: %w", destPath, err)
	}
	u.User = nil
	u.Path = destPath
	return urlutil.Clean(u.String()), nil
}

func (m *FTPMover) Move(ctx context.Context, origin, destination string, p Params) (string, error) {
	dst, err := m.Copy(ctx, origin, destination, p)
	if err != nil {
		return "", err
	}
	os.Remove(origin)
	return dst, nil
}
