package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"sync/atomic"

	"cashflow/internal/log"
)

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
	}
	unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

const maxURLLength = 2048

// Detector flags scanner-like requests and resolves the real client IP
// behind trusted proxies.
type Detector struct {
	suspicious     atomic.Int64
	trustedProxies []netip.Prefix
}

func NewDetector() *Detector {
	d := &Detector{}
	for _, cidr := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"} {
		_ = d.AddTrustedProxy(cidr)
	}
	return d
}

func (d *Detector) AddTrustedProxy(cidr string) error {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, prefix.Masked())
	return nil
}

// IsSuspicious reports whether r looks like probing traffic and counts it.
func (d *Detector) IsSuspicious(r *http.Request) bool {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	agent := strings.ToLower(r.Header.Get("User-Agent"))
	flagged := len(r.URL.String()) > maxURLLength ||
		slices.Contains(unusualMethods, r.Method) ||
		containsAny(target, suspiciousPatterns) ||
		containsAny(agent, scannerAgents) ||
		strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5
	if flagged {
		d.suspicious.Add(1)
	}
	return flagged
}

func containsAny(s string, needles []string) bool {
	return slices.ContainsFunc(needles, func(n string) bool { return strings.Contains(s, n) })
}

// SuspiciousCount is the number of requests flagged so far.
func (d *Detector) SuspiciousCount() int64 {
	return d.suspicious.Load()
}

// ExtractClientIP honours X-Forwarded-For and X-Real-IP only when the
// direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !d.trusted(addr) {
		return peer
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		if ip, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return ip.String()
		}
	}
	return peer
}

func (d *Detector) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	return slices.ContainsFunc(d.trustedProxies, func(p netip.Prefix) bool { return p.Contains(addr) })
}

// Middleware rejects suspicious requests with 400.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !d.IsSuspicious(r) {
			next.ServeHTTP(w, r)
			return
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request rejected",
			log.FieldClientIP, d.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldUserAgent, r.Header.Get("User-Agent"))
		http.Error(w, "bad request", http.StatusBadRequest)
	})
}
