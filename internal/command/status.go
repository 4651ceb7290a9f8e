package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-omads/omads/internal/auth"
	"github.com/go-omads/omads/internal/wire"
)

// StatusOutcome is the processor's interpretation of an inbound Status
// (spec §4.2 "Status").
type StatusOutcome struct {
	// ItemAcknowledged is true when the Status refers to a previously-sent
	// item command, used by server role to build MapItems (spec §4.2).
	ItemAcknowledged bool
	MsgRef           int
	CmdRef           int

	// ChallengeHandled is true if the Status carried a Chal and it was
	// processed (successfully or not -- see HandleStatus's returned error).
	ChallengeHandled bool
}

// HandleStatus correlates an inbound Status to the command it refers to
// and, if it carries a Chal, consults SessionAuth (spec §4.2 "Status":
// "if it refers to a previously-sent item, emit an internal
// item-acknowledged event... if status indicates challenge, consult
// SessionAuth").
func (p *Processor) HandleStatus(ctx context.Context, s *wire.Status) (StatusOutcome, error) {
	outcome := StatusOutcome{MsgRef: s.MsgRef, CmdRef: s.CmdRef}

	if isItemCommandKind(s.Cmd) && s.Code < 300 {
		outcome.ItemAcknowledged = true
	}

	if s.Chal == nil {
		return outcome, nil
	}
	if !isChallengeCode(s.Code) {
		return outcome, nil
	}

	outcome.ChallengeHandled = true
	if p.deps.Auth == nil {
		return outcome, nil
	}

	offered := auth.SchemeNone
	switch s.Chal.Type {
	case wire.AuthTypeBasic:
		offered = auth.SchemeBasic
	case wire.AuthTypeMD5:
		offered = auth.SchemeMD5
	}

	var nonce []byte
	if len(s.Chal.NextNonce) > 0 {
		nonce = s.Chal.NextNonce
	}

	if err := p.deps.Auth.HandlePeerChallenge(ctx, offered, nonce); err != nil {
		if errors.Is(err, auth.ErrDowngradeRefused) || errors.Is(err, auth.ErrNonceUnavailable) {
			return outcome, fmt.Errorf("command: peer challenge: %w", err)
		}
		return outcome, err
	}

	return outcome, nil
}

func isItemCommandKind(k wire.Kind) bool {
	switch k {
	case wire.KindAdd, wire.KindReplace, wire.KindDelete:
		return true
	default:
		return false
	}
}

func isChallengeCode(code int) bool {
	return code == StatusInvalidCred || code == StatusMissingCred
}
