package probe

import (
	"context"
	"net"

	"github.com/hamed0406/socdash/internal/domain"
)

// DNSAnnotator adds a DNS classification to failed probes against host names.
// IP literals are left alone since there is nothing to resolve.
type DNSAnnotator struct {
	Inner    Checker
	Resolver Resolver
}

func NewDNSAnnotator(inner Checker) *DNSAnnotator {
	return &DNSAnnotator{Inner: inner, Resolver: net.DefaultResolver}
}

func (d *DNSAnnotator) Check(ctx context.Context, svc domain.Service) Result {
	res := d.Inner.Check(ctx, svc)
	if res.OK || net.ParseIP(svc.Host) != nil {
		return res
	}

	dns := CheckDNS(ctx, d.Resolver, svc.Host)
	detail := domain.Detail{}
	if res.Detail != nil {
		detail = *res.Detail
	}
	detail.DNS = dns.Class
	res.Detail = &detail
	return res
}
