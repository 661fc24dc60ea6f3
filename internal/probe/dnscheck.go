package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/keepwarm/internal/domain"
)

type DNSClass string

const (
	DNSResolves    DNSClass = "RESOLVES"
	DNSNXDomain    DNSClass = "NXDOMAIN"
	DNSNoAddress   DNSClass = "NO_A_RECORD"
	DNSServFail    DNSClass = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName DNSClass = "INVALID_NAME"
)

var dnsTimeout = 3 * time.Second

type DNSStatus struct {
	Domain        string
	HasAOrAAAA    bool
	CNAME         string
	Nameservers   []string
	Class         DNSClass
	ResolverError string
}

// CheckDNS classifies how domain resolves using the OS resolver.
func CheckDNS(ctx context.Context, domain string) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(domain)}
	if s.Domain == "" || strings.Contains(s.Domain, "://") {
		s.Class = DNSInvalidName
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	r := &net.Resolver{}

	ips, err := r.LookupIPAddr(ctx, s.Domain)
	switch {
	case err == nil && len(ips) > 0:
		s.HasAOrAAAA = true
		s.Class = DNSResolves
	case err != nil:
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			if de.IsNotFound {
				s.Class = DNSNXDomain
			} else if de.IsTemporary || de.Timeout() {
				s.Class = DNSServFail
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Domain); err == nil && !strings.EqualFold(cname, s.Domain+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}
	if ns, err := r.LookupNS(ctx, s.Domain); err == nil && len(ns) > 0 {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == DNSNXDomain {
			s.Class = DNSNoAddress
		}
	}

	if s.Class == "" {
		switch {
		case s.HasAOrAAAA:
			s.Class = DNSResolves
		case len(s.Nameservers) > 0:
			s.Class = DNSNoAddress
		case s.ResolverError != "":
			s.Class = DNSServFail
		default:
			s.Class = DNSNXDomain
		}
	}
	return s
}

// DNSDiagnosingChecker wraps a Checker and, when a ping fails on name
// resolution, appends a DNS classification of the host to the message.
// Nothing is added to successful or non-DNS results.
type DNSDiagnosingChecker struct {
	Next     Checker
	Diagnose func(ctx context.Context, host string) DNSStatus
}

func WithDNSDiagnosis(next Checker) *DNSDiagnosingChecker {
	return &DNSDiagnosingChecker{Next: next, Diagnose: CheckDNS}
}

// The request timeout bounds the ping and the diagnosis together; when the
// ping used it all up, no diagnosis is attempted.
func (d *DNSDiagnosingChecker) Check(ctx context.Context, req Request) CheckResult {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	res := d.Next.Check(ctx, req)
	if res.Success || res.Kind != domain.KindDNS || ctx.Err() != nil {
		return res
	}
	st := d.Diagnose(ctx, extractHost(req.URL))
	res.Message = strings.TrimSpace(res.Message + " dns=" + string(st.Class))
	if st.CNAME != "" {
		res.Message += " cname=" + st.CNAME
	}
	return res
}

// extractHost pulls the hostname from a URL string
func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
