// Package resolver implements the Address Resolver (§4.B): it determines
// the externally reachable (host, port, scheme) for this process so the
// Registration Agent can hand a dialable address to the registry.
package resolver

import (
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
)

// Config mirrors the Consul.ServiceAddress / Consul.ServicePort /
// Consul.PreferredNetworks configuration inputs.
type Config struct {
	Address           string
	Port              int
	Scheme            string
	PreferredNetworks []string
}

// Resolved is the externally reachable address the Registration Agent
// hands to the registry.
type Resolved struct {
	Host   string
	Port   int
	Scheme string
}

var wildcardHosts = map[string]struct{}{
	"":          {},
	"*":         {},
	"+":         {},
	"0.0.0.0":   {},
	"localhost": {},
	"127.0.0.1": {},
}

// Resolve implements §4.B. boundHost/boundPort/boundScheme describe where
// the process actually bound its listener.
func Resolve(logger *slog.Logger, cfg Config, boundHost string, boundPort int, boundScheme string) (Resolved, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Step 1: explicit override.
	if cfg.Address != "" && cfg.Port != 0 {
		scheme := cfg.Scheme
		if scheme == "" {
			scheme = boundScheme
		}
		return Resolved{Host: cfg.Address, Port: cfg.Port, Scheme: scheme}, nil
	}

	host := boundHost
	if _, wildcard := wildcardHosts[strings.ToLower(host)]; wildcard {
		concrete, err := pickAddress(cfg.PreferredNetworks, logger)
		if err != nil {
			return Resolved{}, err
		}
		host = concrete
	}

	scheme := boundScheme
	if cfg.Scheme != "" {
		scheme = cfg.Scheme
	}

	return Resolved{Host: host, Port: boundPort, Scheme: scheme}, nil
}

// pickAddress enumerates operational non-loopback IPv4 interfaces and
// selects one according to the preferred-network rules in §4.B step 2.
func pickAddress(preferred []string, logger *slog.Logger) (string, error) {
	candidates, err := operationalIPv4()
	if err != nil {
		return "", fmt.Errorf("resolver: enumerating interfaces: %w", err)
	}

	if len(candidates) == 0 {
		logger.Warn("no non-loopback IPv4 interfaces found, falling back to 127.0.0.1")
		return "127.0.0.1", nil
	}

	if len(preferred) == 0 {
		return candidates[0], nil
	}

	matchers := compilePreferred(preferred)
	for _, candidate := range candidates {
		for _, m := range matchers {
			if m.match(candidate) {
				return candidate, nil
			}
		}
	}

	logger.Warn("no interface matched preferred networks, falling back to first non-loopback IPv4",
		"preferredNetworks", preferred, "fallback", candidates[0])
	return candidates[0], nil
}

// operationalIPv4 returns the string form of every non-loopback IPv4
// address bound to an interface that is currently up.
func operationalIPv4() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() {
				continue
			}
			out = append(out, ip4.String())
		}
	}
	return out, nil
}

// preferredMatcher matches a candidate address against either a literal
// prefix or a compiled regular expression.
type preferredMatcher struct {
	prefix string
	re     *regexp.Regexp
}

func (m preferredMatcher) match(candidate string) bool {
	if m.re != nil {
		return m.re.MatchString(candidate)
	}
	return strings.HasPrefix(candidate, m.prefix)
}

// compilePreferred treats each entry as a regex if it compiles to something
// other than a plain literal prefix match; entries that fail to compile as
// regex are treated as plain prefixes.
func compilePreferred(entries []string) []preferredMatcher {
	matchers := make([]preferredMatcher, 0, len(entries))
	for _, entry := range entries {
		if re, err := regexp.Compile(entry); err == nil && isPatternLike(entry) {
			matchers = append(matchers, preferredMatcher{re: re})
			continue
		}
		matchers = append(matchers, preferredMatcher{prefix: entry})
	}
	return matchers
}

// isPatternLike reports whether entry contains a character that only makes
// sense as a regex metacharacter, so plain prefixes like "10.0." are never
// mistakenly compiled as regexes.
func isPatternLike(entry string) bool {
	return strings.ContainsAny(entry, `\^$|?*+()[]{}`)
}
