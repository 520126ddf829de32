package cluster

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Topology is the static shard list a router is started with.
//
//	shards:
//	  - id: 0
//	    addr: http://localhost:8901
//	  - id: 1
//	    addr: http://localhost:8902
type Topology struct {
	Shards []ShardTarget `yaml:"shards"`
}

// DecodeTopology reads a YAML topology document.
func DecodeTopology(r io.Reader) (Topology, error) {
	var t Topology
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Topology{}, fmt.Errorf("decode topology: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Topology{}, err
	}
	return t, nil
}

// LoadTopology reads a YAML topology file from disk.
func LoadTopology(path string) (Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return Topology{}, err
	}
	defer f.Close()
	return DecodeTopology(f)
}

// Validate rejects empty topologies, blank addresses and duplicate shard IDs.
func (t Topology) Validate() error {
	if len(t.Shards) == 0 {
		return fmt.Errorf("topology: no shards configured")
	}
	for i, s := range t.Shards {
		if s.Addr == "" {
			return fmt.Errorf("topology: shard %d has no addr", s.ID)
		}
		if s.ID < 0 {
			return fmt.Errorf("topology: shard id %d is negative", s.ID)
		}
		if j := slices.IndexFunc(t.Shards[:i], func(o ShardTarget) bool { return o.ID == s.ID }); j >= 0 {
			return fmt.Errorf("topology: duplicate shard id %d", s.ID)
		}
	}
	return nil
}
