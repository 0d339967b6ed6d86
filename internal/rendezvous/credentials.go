// ABOUTME: store_routing_credentials tool handler.
// ABOUTME: Saves a paid L402 credential into the calling session only.

package rendezvous

import (
	"context"
	"encoding/json"

	"github.com/2389/rendezvous-mcp/internal/ledger"
	"github.com/2389/rendezvous-mcp/internal/session"
)

const credentialsStoredMessage = "L402 credentials stored. Subsequent routing calls will authenticate automatically."

type storeCredentialsInput struct {
	Macaroon string `json:"macaroon" validate:"required"`
	Preimage string `json:"preimage" validate:"required"`
}

type storeCredentialsOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StoreCredentials replaces the session's L402 credential.
func (h *handlers) StoreCredentials(ctx context.Context, sess *session.Session, input json.RawMessage) (json.RawMessage, error) {
	if sess == nil || sess.Credentials == nil {
		return nil, ErrNoSession
	}
	var in storeCredentialsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	sess.Credentials.Store(in.Macaroon, in.Preimage)
	h.logger.Info("stored L402 routing credentials", "session_id", sess.ID)

	if h.ledger != nil {
		if err := h.ledger.RecordCredentialEvent(ctx, sess.ID, ledger.CredentialStored); err != nil {
			h.logger.Warn("failed to record credential event", "session_id", sess.ID, "error", err)
		}
	}

	return json.Marshal(storeCredentialsOutput{Success: true, Message: credentialsStoredMessage})
}
