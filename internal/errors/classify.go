package errors

import (
	"context"
	"crypto/x509"
	stderrors "errors"
	"net"
	"strings"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
)

// Classify maps an error returned by the orchestration API client to a Code.
func Classify(err error) Code {
	if err == nil {
		return ""
	}

	var own *Error
	if stderrors.As(err, &own) {
		return own.Code
	}

	switch {
	case k8serrors.IsNotFound(err):
		return ErrNotFound
	case k8serrors.IsConflict(err):
		return ErrConflict
	case k8serrors.IsAlreadyExists(err):
		return ErrAlreadyExists
	case k8serrors.IsUnauthorized(err):
		return ErrUnauthorized
	case k8serrors.IsForbidden(err):
		return ErrForbidden
	case k8serrors.IsTimeout(err), k8serrors.IsServerTimeout(err):
		return ErrTimeout
	case k8serrors.IsInvalid(err), k8serrors.IsBadRequest(err):
		return ErrInvalidInput
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var unknownAuthority x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var certErr x509.CertificateInvalidError
	if stderrors.As(err, &unknownAuthority) || stderrors.As(err, &hostErr) || stderrors.As(err, &certErr) {
		return ErrUnreachable
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrUnreachable
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return ErrUnreachable
	case strings.Contains(msg, "x509:"):
		return ErrUnreachable
	}
	return ErrInternal
}
