package usecase

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"github.com/netocloud/slack-relay/internal/biz/domain"
)

// Request headers carrying the Slack signature
const (
	HeaderSignature = "X-Slack-Signature"
	HeaderTimestamp = "X-Slack-Request-Timestamp"
)

// SignatureVerifier checks that a delivery was signed with the shared signing secret
type SignatureVerifier struct {
	signingSecret string
}

// NewSignatureVerifier creates a verifier. An empty secret is accepted here and
// reported as a configuration error on every Verify call.
func NewSignatureVerifier(signingSecret string) *SignatureVerifier {
	return &SignatureVerifier{signingSecret: strings.TrimSpace(signingSecret)}
}

// Verify validates signature and timestamp against the raw body bytes
func (v *SignatureVerifier) Verify(body []byte, signature, timestamp string) error {
	if signature == "" || timestamp == "" {
		return fmt.Errorf("%w: missing signature or timestamp", domain.ErrAuthentication)
	}
	if v.signingSecret == "" {
		return fmt.Errorf("%w: signing secret not set", domain.ErrConfiguration)
	}

	header := http.Header{}
	header.Set(HeaderSignature, signature)
	header.Set(HeaderTimestamp, timestamp)

	sv, err := slack.NewSecretsVerifier(header, v.signingSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("%w: invalid signature", domain.ErrAuthentication)
	}
	return nil
}

// Configured reports whether a signing secret is present
func (v *SignatureVerifier) Configured() bool {
	return v.signingSecret != ""
}
