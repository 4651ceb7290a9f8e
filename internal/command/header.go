package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-omads/omads/internal/auth"
	"github.com/go-omads/omads/internal/wire"
)

// ErrSessionMismatch indicates the inbound header's SessionID does not
// match the session in progress (spec §4.2 "On mismatch of session id
// mid-session, fail PROCESSING_ERROR (506)"). The session state machine
// must terminate on this error.
var ErrSessionMismatch = errors.New("command: session id mismatch")

// HandleHeader validates and authenticates an inbound SyncHdr (spec §4.2
// "Header"). The returned Status corresponds to the header itself (cmd id
// 0 per convention: header statuses carry CmdRef 0).
func (p *Processor) HandleHeader(ctx context.Context, hdr wire.Header) (*wire.Status, error) {
	if p.deps.SessionID != "" && hdr.SessionID != p.deps.SessionID {
		return &wire.Status{Cmd: wire.KindStatus, Code: StatusProcessingError}, fmt.Errorf("header session %q: %w", hdr.SessionID, ErrSessionMismatch)
	}

	status := &wire.Status{Cmd: wire.KindStatus}

	if p.deps.Auth == nil {
		status.Code = StatusSuccess
		return status, nil
	}

	if hdr.Cred == nil {
		if p.authRequired {
			status.Code = StatusMissingCred
			return status, nil
		}
		status.Code = StatusSuccess
		return status, nil
	}

	scheme, enc := schemeFromCred(hdr.Cred)
	result, err := p.deps.Auth.VerifyInbound(ctx, scheme, enc, hdr.Cred.Data)
	if err != nil {
		if errors.Is(err, auth.ErrAuthFailed) {
			status.Code = StatusInvalidCred
			return status, err
		}
		return status, err
	}

	switch result {
	case auth.ResultAccepted:
		p.authRequired = false
		status.Code = StatusAuthAccepted
		if nonce, nerr := auth.GenerateNextNonce(); nerr == nil {
			if cerr := p.deps.Auth.IssueChallenge(ctx, nonce); cerr == nil {
				status.Chal = &wire.Chal{Type: wire.AuthTypeMD5, Format: wire.FormatB64, NextNonce: auth.EncodeB64(nonce)}
			}
		}
	case auth.ResultInvalidFirst:
		status.Code = StatusInvalidCred
		status.Chal = challengeFor(p.deps.Auth)
	case auth.ResultInvalidFinal:
		status.Code = StatusInvalidCred
	case auth.ResultMissing:
		status.Code = StatusMissingCred
	}

	return status, nil
}

func schemeFromCred(c *wire.Cred) (auth.Scheme, auth.Encoding) {
	scheme := auth.SchemeNone
	switch c.Type {
	case wire.AuthTypeBasic:
		scheme = auth.SchemeBasic
	case wire.AuthTypeMD5:
		scheme = auth.SchemeMD5
	}
	enc := auth.EncodingRaw
	if c.Format == wire.FormatB64 {
		enc = auth.EncodingB64
	}
	return scheme, enc
}

func challengeFor(n *auth.Negotiator) *wire.Chal {
	if n.Negotiated() == auth.SchemeMD5 {
		return &wire.Chal{Type: wire.AuthTypeMD5, Format: wire.FormatB64}
	}
	return &wire.Chal{Type: wire.AuthTypeBasic, Format: wire.FormatB64}
}
