package dispatch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/config"
	"github.com/aistore/movefabric/movers"
	"github.com/aistore/movefabric/msg"
	"github.com/aistore/movefabric/pattern"
	"github.com/aistore/movefabric/transport"
	"github.com/aistore/movefabric/urlutil"
)

// Client is one dispatcher section: a set of dispatch items sharing a host
// default, directory default, file-pattern default, aliases, and
// connection parameters.
type Client struct {
	Name string
	cfg  *config.Chain
	pub  *transport.Publisher // optional, shared across clients
	subs []*transport.Subscriber
}

func New(name string, cfg *config.Chain, pub *transport.Publisher) *Client {
	return &Client{Name: name, cfg: cfg, pub: pub}
}

func (c *Client) Run(providers []string) {
	for _, provider := range providers {
		for _, dc := range c.cfg.DispatchConfigs {
			for _, topic := range dc.Topics {
				sub := transport.NewSubscriber(provider, topic)
				c.subs = append(c.subs, sub)
				go sub.Run(c.handle)
			}
		}
	}
}

func (c *Client) Stop() {
	for _, s := range c.subs {
		s.Close()
	}
}

// handle evaluates every dispatch item against m and invokes the movers
// for each that matches, publishing one message per successful delivery.
func (c *Client) handle(m *msg.Message) {
	if !urlutil.IsLocal(sourceHost(m)) {
		nlog.Warningf("dispatch[%s]: refusing to proxy non-local source %v", c.Name, m.Data["uri"])
		return
	}

	uid, _ := m.Data["uid"].(string)
	order := stableOrder(uid, len(c.cfg.DispatchConfigs))

	for _, idx := range order {
		dc := c.cfg.DispatchConfigs[idx]
		if !topicMatches(m.Subject, dc.Topics) {
			continue
		}
		if !conditionsMatch(dc.Conditions, m.Data) {
			continue
		}
		c.deliver(m, dc)
	}
}

func sourceHost(m *msg.Message) string {
	uri, _ := m.Data["uri"].(string)
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// deliver composes the destination path for one matched dispatch item and
// hands it to the movers, publishing on success. dc.Host/FilePattern/
// Directory already carry the client-level fallback applied at config load
// time (config.DispatcherConfig.ToChains); only "no file_pattern anywhere"
// is resolved here, against the source file's basename.
func (c *Client) deliver(m *msg.Message, dc config.DispatchConfig) {
	mda := buildMDA(m, c.cfg.Aliases, c.cfg.AliasName)

	filePattern := dc.FilePattern
	if filePattern == "" {
		if uid, ok := mda["uid"].(string); ok {
			filePattern = uid
		}
	}

	path, err := pattern.Compose(dc.Directory+"/"+filePattern, mda)
	if err != nil {
		nlog.Warningf("dispatch[%s]: compose path: %v", c.Name, err)
		return
	}

	destination := fmt.Sprintf("%s%s", dc.Host, path)
	origin, _ := m.Data["uri"].(string)
	origin = stripFileScheme(origin)

	cleanDest, err := movers.Copy(context.Background(), origin, destination, movers.Params{Extra: c.cfg.ConnectionParams})
	if err != nil {
		nlog.Warningf("dispatch[%s]: copy to %s: %v", c.Name, urlutil.Clean(destination), err)
		return
	}

	if c.pub == nil {
		return
	}
	topic, terr := pattern.Compose(c.cfg.PublishTopic, mda)
	if terr != nil {
		topic = c.cfg.PublishTopic
	}
	out := map[string]any{}
	for k, v := range mda {
		out[k] = v
	}
	out["uri"] = urlutil.Clean(cleanDest)
	c.pub.Publish(msg.New(topic, msg.TypeFile, c.Name, out))
}

func stripFileScheme(uri string) string {
	const prefix = "file://"
	if len(uri) >= len(prefix) && uri[:len(prefix)] == prefix {
		return uri[len(prefix):]
	}
	return uri
}

// buildMDA clones m.Data and augments it with the alias mapping:
// mda[alias_name or key] := aliases[key].get(value, value).
func buildMDA(m *msg.Message, aliases map[string]map[string]string, aliasName map[string]string) map[string]any {
	mda := make(map[string]any, len(m.Data))
	for k, v := range m.Data {
		mda[k] = v
	}
	for key, mapping := range aliases {
		v, ok := mda[key]
		if !ok {
			continue
		}
		src := fmt.Sprint(v)
		dst := src
		if mapped, ok := mapping[src]; ok {
			dst = mapped
		}
		target := key
		if an, ok := aliasName[key]; ok && an != "" {
			target = an
		}
		mda[target] = dst
	}
	return mda
}
