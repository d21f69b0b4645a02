// Package awserr classifies AWS SDK errors into the handful of semantic outcomes the
// modules care about: missing resources, denied access, throttling and unsupported
// operations.
package awserr

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

type Kind int

const (
	KindGeneric Kind = iota
	KindNotFound
	KindAccessDenied
	KindThrottle
	KindUnsupported
)

var (
	accessDeniedCodes = []string{
		"AccessDenied",
		"AccessDeniedException",
		"AuthFailure",
		"UnauthorizedOperation",
		"Forbidden",
	}

	throttleCodes = []string{
		"Throttling",
		"ThrottlingException",
		"ThrottledException",
		"TooManyRequestsException",
		"RequestLimitExceeded",
		"RequestThrottled",
		"RequestThrottledException",
		"SlowDown",
		"EC2ThrottledException",
	}

	unsupportedCodes = []string{
		"UnsupportedOperation",
		"InvalidAction",
		"OptInRequired",
	}

	// Codes the services use for a missing resource that don't follow the common
	// *NotFound* / NoSuch* naming.
	notFoundCodes = []string{
		"NoSuchEntity",
		"NoSuchBucket",
		"NoSuchLifecycleConfiguration",
		"NoSuchTagSet",
		"NoSuchHostedZone",
		"WAFNonexistentItemException",
		"DBInstanceNotFound",
		"DBSnapshotNotFound",
		"CacheClusterNotFound",
	}
)

// Code returns the AWS error code, or "" when err is not an API error.
func Code(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// Classify maps an SDK error to its semantic kind. Classification prefers the error
// code; a 404 response with an unrecognised code still counts as not found.
func Classify(err error) Kind {
	code := Code(err)

	switch {
	case code == "":
		return KindGeneric
	case matches(code, throttleCodes):
		return KindThrottle
	case matches(code, accessDeniedCodes):
		return KindAccessDenied
	case matches(code, unsupportedCodes):
		return KindUnsupported
	case isNotFoundCode(code):
		return KindNotFound
	}

	var responseErr *smithyhttp.ResponseError
	if errors.As(err, &responseErr) && responseErr.HTTPStatusCode() == 404 {
		return KindNotFound
	}

	return KindGeneric
}

func IsNotFound(err error) bool     { return Classify(err) == KindNotFound }
func IsAccessDenied(err error) bool { return Classify(err) == KindAccessDenied }
func IsThrottle(err error) bool     { return Classify(err) == KindThrottle }
func IsUnsupported(err error) bool  { return Classify(err) == KindUnsupported }

func isNotFoundCode(code string) bool {
	if matches(code, notFoundCodes) {
		return true
	}
	return strings.Contains(code, "NotFound") || strings.HasPrefix(code, "NoSuch")
}

func matches(code string, codes []string) bool {
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}
