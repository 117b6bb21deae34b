// Package config loads a node's kava.conf file: the static description
// of self, the storage engine choice, and the cluster roster. This is
// out-of-scope, contract-only territory per the specification — it is
// deliberately thin.
package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"kava/internal/ring"
)

// DefaultPath is the configuration file used when no CLI argument is given.
const DefaultPath = "kava.conf"

// Config is the fully parsed contents of a kava.conf file.
type Config struct {
	Host        string
	Port        int
	Storage     string
	LogEnabled  bool
	Me          string
	Roster      []ring.ClusterNode

	// MetricsPort is the bind port for the /healthz and /metrics HTTP
	// surface. Zero (the default) disables the metrics server entirely.
	MetricsPort int
}

var clusterKeyPattern = regexp.MustCompile(`^cluster\.node\.([^.]+)\.(host|port|gossip)$`)

type peerFields struct {
	host       string
	port       int
	gossipPort int
}

// Load reads and parses path, returning a fatal error for any unknown
// key, any malformed port number, or a missing self entry in the
// cluster roster.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()

	cfg := &Config{Storage: "memory"}
	peers := map[string]*peerFields{}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := splitKeyValue(line)
		if !ok {
			return nil, fmt.Errorf("%s:%d: malformed line %q", path, lineNo, line)
		}

		if err := apply(cfg, peers, key, value); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.Roster = buildRoster(peers)

	if cfg.Me == "" {
		return nil, fmt.Errorf("%s: missing required key %q", path, "me")
	}
	if !hasSelf(cfg.Roster, cfg.Me) {
		return nil, fmt.Errorf("%s: self node %q not present in cluster roster", path, cfg.Me)
	}

	return cfg, nil
}

func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func apply(cfg *Config, peers map[string]*peerFields, key, value string) error {
	switch key {
	case "host":
		cfg.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", value, err)
		}
		cfg.Port = port
	case "storage":
		cfg.Storage = value
	case "log_enabled":
		cfg.LogEnabled = value == "true"
	case "me":
		cfg.Me = value
	case "metrics_port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid metrics_port %q: %w", value, err)
		}
		cfg.MetricsPort = port
	default:
		if m := clusterKeyPattern.FindStringSubmatch(key); m != nil {
			id, field := m[1], m[2]
			p, ok := peers[id]
			if !ok {
				p = &peerFields{}
				peers[id] = p
			}
			switch field {
			case "host":
				p.host = value
			case "port":
				port, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid port for %s: %w", id, err)
				}
				p.port = port
			case "gossip":
				port, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid gossip port for %s: %w", id, err)
				}
				p.gossipPort = port
			}
			return nil
		}
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return nil
}

func buildRoster(peers map[string]*peerFields) []ring.ClusterNode {
	ids := make([]string, 0, len(peers))
	for id := range peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	roster := make([]ring.ClusterNode, 0, len(ids))
	for _, id := range ids {
		p := peers[id]
		roster = append(roster, ring.ClusterNode{
			ID:         id,
			Host:       p.host,
			Port:       p.port,
			GossipPort: p.gossipPort,
		})
	}
	return roster
}

func hasSelf(roster []ring.ClusterNode, me string) bool {
	for _, n := range roster {
		if n.ID == me {
			return true
		}
	}
	return false
}

