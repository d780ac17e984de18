package cluster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cloudtm/gmu/internal/version"
)

// NodeConfig describes one member of the static cluster.
type NodeConfig struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

// Config is the YAML-driven static description of the cluster: its
// membership (fixing the dense node indices every Version is generated
// against), the local node's own ID, and the replication factor the
// Distribution Manager places keys with. Loaded once at startup and
// treated as immutable afterwards — there is no running config-reload
// path, matching design note 9's decision to treat the commit log's
// "enabled" flag, and by extension all of a node's static setup, as
// fixed for the process lifetime.
type Config struct {
	SelfID            string       `yaml:"self_id"`
	Nodes             []NodeConfig `yaml:"nodes"`
	ReplicationFactor int          `yaml:"replication_factor"`
}

// Load reads and validates a cluster config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse cluster config: %w", err)
	}
	setDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cluster config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.ReplicationFactor == 0 {
		cfg.ReplicationFactor = 1
	}
}

// Validate checks that the config is internally consistent.
func (c *Config) Validate() error {
	if c.SelfID == "" {
		return fmt.Errorf("self_id is required")
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	if c.ReplicationFactor < 1 || c.ReplicationFactor > len(c.Nodes) {
		return fmt.Errorf("replication_factor must be between 1 and %d", len(c.Nodes))
	}
	found := false
	seen := make(map[string]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.ID == "" || n.Address == "" {
			return fmt.Errorf("node entries require both id and address")
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
		if n.ID == c.SelfID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("self_id %q is not among nodes", c.SelfID)
	}
	return nil
}

// NodeIDs returns the configured node identifiers in file order, which
// fixes the dense index every Version generated from this snapshot
// uses.
func (c *Config) NodeIDs() []string {
	ids := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Address resolves a NodeID to its network address.
func (c *Config) Address(nodeID string) (string, error) {
	for _, n := range c.Nodes {
		if n.ID == nodeID {
			return n.Address, nil
		}
	}
	return "", ErrUnknownNode
}

// Snapshot builds the version.ClusterSnapshot this config describes.
func (c *Config) Snapshot(snapshotID uint64) *version.ClusterSnapshot {
	return version.NewClusterSnapshot(snapshotID, c.NodeIDs())
}

// NewRing builds a Ring pre-populated with every configured node, sized
// to this config's replication factor.
func (c *Config) NewRing() *Ring {
	r := NewRing(c.ReplicationFactor)
	for _, n := range c.Nodes {
		r.AddNode(n.ID)
	}
	return r
}
