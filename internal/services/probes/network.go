package probes

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/overseer/internal/models"
)

// HTTP counts endpoints answering with a non-5xx status
func HTTP(urls []string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context) (models.ProbeResult, error) {
		result := models.ProbeResult{Kind: models.ProbeKindConnectivity, Attempted: len(urls)}
		var failures []string

		for _, url := range urls {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", url, err))
				continue
			}
			resp, err := client.Do(req)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", url, err))
				continue
			}
			resp.Body.Close()

			if resp.StatusCode >= http.StatusInternalServerError {
				failures = append(failures, fmt.Sprintf("%s: HTTP %d", url, resp.StatusCode))
				continue
			}
			result.Succeeded++
		}

		result.Details = strings.Join(failures, "; ")
		return result, nil
	}
}

// TCP counts addresses accepting a connection
func TCP(addresses []string, timeout time.Duration) Probe {
	return func(ctx context.Context) (models.ProbeResult, error) {
		result := models.ProbeResult{Kind: models.ProbeKindConnectivity, Attempted: len(addresses)}
		dialer := &net.Dialer{Timeout: timeout}
		var failures []string

		for _, addr := range addresses {
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", addr, err))
				continue
			}
			conn.Close()
			result.Succeeded++
		}

		result.Details = strings.Join(failures, "; ")
		return result, nil
	}
}

// TLS checks that every address serves a verifiable certificate and rates the nearest expiry
func TLS(addresses []string, timeout time.Duration, warningDays, criticalDays int) Probe {
	return tlsProbe(addresses, timeout, warningDays, criticalDays, nil, time.Now)
}

func tlsProbe(addresses []string, timeout time.Duration, warningDays, criticalDays int, config *tls.Config, now func() time.Time) Probe {
	return func(ctx context.Context) (models.ProbeResult, error) {
		if len(addresses) == 0 {
			return models.ProbeResult{}, fmt.Errorf("no tls targets configured")
		}

		status := models.HealthStatusHealthy
		var details []string

		for _, addr := range addresses {
			dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}, Config: config}
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				status = models.HealthStatusFailed
				details = append(details, fmt.Sprintf("%s: %v", addr, err))
				continue
			}

			certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
			conn.Close()
			if len(certs) == 0 {
				status = models.HealthStatusFailed
				details = append(details, fmt.Sprintf("%s: no certificate presented", addr))
				continue
			}

			days := int(certs[0].NotAfter.Sub(now()).Hours() / 24)
			certStatus := models.HealthStatusHealthy
			switch {
			case days < criticalDays:
				certStatus = models.HealthStatusCritical
			case days < warningDays:
				certStatus = models.HealthStatusWarning
			}
			if certStatus.Severity() > status.Severity() {
				status = certStatus
			}
			details = append(details, fmt.Sprintf("%s: expires in %d days", addr, days))
		}

		return models.ProbeResult{
			Kind:    models.ProbeKindVerdict,
			Status:  status,
			Details: strings.Join(details, "; "),
		}, nil
	}
}
