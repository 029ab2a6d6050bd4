package exclusions

import (
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether an address is excluded from contact analytics.
// Bulk senders (no-reply addresses, newsletter domains) would otherwise
// dominate frequency and recency statistics.
type Checker struct {
	domains   map[string]struct{}
	addresses map[string]struct{}
	prefixes  []string
	logger    *zap.Logger
}

// NewChecker creates a new exclusion checker. domains excludes every
// address at a domain; addresses excludes exact addresses; prefixes
// excludes local parts starting with a given string (e.g. "no-reply").
func NewChecker(domains, addresses, prefixes []string, logger *zap.Logger) *Checker {
	c := &Checker{
		domains:   make(map[string]struct{}, len(domains)),
		addresses: make(map[string]struct{}, len(addresses)),
		prefixes:  make([]string, 0, len(prefixes)),
		logger:    logger,
	}
	for _, d := range domains {
		c.domains[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	for _, a := range addresses {
		c.addresses[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			c.prefixes = append(c.prefixes, p)
		}
	}

	if logger != nil && (len(c.domains) > 0 || len(c.addresses) > 0 || len(c.prefixes) > 0) {
		logger.Info("Initialized exclusion checker",
			zap.Int("domains", len(c.domains)),
			zap.Int("addresses", len(c.addresses)),
			zap.Int("prefixes", len(c.prefixes)))
	}

	return c
}

// IsExcluded checks whether the address is excluded from analytics.
func (c *Checker) IsExcluded(address string) bool {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return false
	}

	if _, ok := c.addresses[address]; ok {
		return true
	}

	at := strings.LastIndex(address, "@")
	if at < 0 {
		return false
	}
	local, domain := address[:at], address[at+1:]

	if _, ok := c.domains[domain]; ok {
		return true
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(local, p) {
			return true
		}
	}

	return false
}
