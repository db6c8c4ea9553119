package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleINI = `
[server_H]
origin = /in/H-{time:%Y%m%d%H%M}-__
topic = /H
request_port = 9094
delete = true
connection_parameters__client_kwargs__endpoint_url = http://minio:9000

[client_H]
providers = localhost:9010
destinations = file:///out
topic = /H
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadINIParsesChains(t *testing.T) {
	path := writeTemp(t, "server.ini", sampleINI)
	chains, errs := LoadINI(path)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	srv, ok := chains["server_H"]
	if !ok {
		t.Fatal("missing server_H chain")
	}
	if srv.RequestPort != 9094 {
		t.Errorf("RequestPort = %d", srv.RequestPort)
	}
	if !srv.Delete {
		t.Error("Delete = false, want true")
	}
	if srv.ConnectionParams["client_kwargs.endpoint_url"] != "http://minio:9000" {
		t.Errorf("ConnectionParams = %v", srv.ConnectionParams)
	}

	client, ok := chains["client_H"]
	if !ok {
		t.Fatal("missing client_H chain")
	}
	if len(client.Providers) != 1 || client.Providers[0] != "localhost:9010" {
		t.Errorf("Providers = %v", client.Providers)
	}
}

func TestLoadINIRequiresOriginOrListen(t *testing.T) {
	path := writeTemp(t, "bad.ini", "[broken]\ntopic = /X\n")
	_, errs := LoadINI(path)
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}

func TestReconcileClassifiesChains(t *testing.T) {
	a := &Chain{Name: "a", Topic: "/A"}
	bOld := &Chain{Name: "b", Topic: "/B"}
	bNew := &Chain{Name: "b", Topic: "/B2"}
	c := &Chain{Name: "c", Topic: "/C"}

	current := map[string]*Chain{"a": a, "b": bOld}
	next := map[string]*Chain{"a": a, "b": bNew, "c": c}

	d := Reconcile(current, next)
	if len(d.Untouched) != 1 || d.Untouched[0] != "a" {
		t.Errorf("Untouched = %v", d.Untouched)
	}
	if len(d.Stop) != 1 || d.Stop[0] != "b" {
		t.Errorf("Stop = %v", d.Stop)
	}
	if len(d.Start) != 2 {
		t.Errorf("Start = %v", d.Start)
	}
}

func TestReconcileRemovesDroppedChains(t *testing.T) {
	a := &Chain{Name: "a"}
	current := map[string]*Chain{"a": a}
	next := map[string]*Chain{}
	d := Reconcile(current, next)
	if len(d.Stop) != 1 || d.Stop[0] != "a" {
		t.Errorf("Stop = %v", d.Stop)
	}
}

const sampleYAML = `
client1:
  host: client1.example.org
  filepattern: "{platform}_{product}.png"
  directory: /data/out
  aliases:
    product:
      _alias_name: prod
      green_snow: gs
  dispatch_configs:
    - topics: ["/H"]
      conditions:
        - product: [green_snow, true_color]
          sensor: viirs
        - product: [green_snow, overview]
          sensor: avhrr
          except:
            platform_name: NOAA-15
`

func TestLoadYAMLAndToChains(t *testing.T) {
	path := writeTemp(t, "dispatcher.yaml", sampleYAML)
	dc, err := LoadYAML(path)
	if err != nil {
		t.Fatal(err)
	}
	chains := dc.ToChains()
	c, ok := chains["client1"]
	if !ok {
		t.Fatal("missing client1 chain")
	}
	if len(c.DispatchConfigs) != 1 {
		t.Fatalf("DispatchConfigs = %v", c.DispatchConfigs)
	}
	dcfg := c.DispatchConfigs[0]
	if len(dcfg.Conditions) != 2 {
		t.Fatalf("Conditions = %v", dcfg.Conditions)
	}
	if dcfg.Conditions[1].Except == nil {
		t.Error("expected except sub-set on second condition set")
	}
	if c.AliasName["product"] != "prod" {
		t.Errorf("AliasName[product] = %q", c.AliasName["product"])
	}
}

func TestChainEqualIgnoresNothingVolatile(t *testing.T) {
	a := &Chain{Name: "x", Topic: "/X", ReqTimeout: time.Second}
	b := &Chain{Name: "x", Topic: "/X", ReqTimeout: time.Second}
	if !a.Equal(b) {
		t.Error("expected equal chains to compare equal")
	}
	b.Topic = "/Y"
	if a.Equal(b) {
		t.Error("expected differing chains to compare unequal")
	}
}
