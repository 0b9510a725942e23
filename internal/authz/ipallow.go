package authz

import (
	"context"
	"net"

	"muhasebe-platform/pkg/logger"
)

// IPAllowlist evaluates the client IP against configured CIDRs.
//
// Evaluation is currently LOG-ONLY: requests from outside the allowlist are
// recorded but not rejected. Enforcement is withheld until product signs off,
// because turning it on changes access semantics for existing users. Do not
// enable the rejecting path without that decision.
type IPAllowlist struct {
	nets []*net.IPNet
}

func NewIPAllowlist(cidrs []string) (*IPAllowlist, error) {
	l := &IPAllowlist{}
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, err
		}
		l.nets = append(l.nets, n)
	}
	return l, nil
}

// Empty reports whether no CIDRs are configured; an empty list allows all.
func (l *IPAllowlist) Empty() bool { return l == nil || len(l.nets) == 0 }

// Allowed reports whether ip falls inside any configured CIDR.
func (l *IPAllowlist) Allowed(ip string) bool {
	if l.Empty() {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range l.nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Observe computes and logs the allowlist decision without enforcing it.
func (l *IPAllowlist) Observe(ctx context.Context, ip, userID string) {
	if l.Empty() {
		return
	}
	if !l.Allowed(ip) {
		logger.From(ctx).Warn("client ip outside allowlist (not enforced)",
			"ip", ip, "user_id", userID)
	}
}
