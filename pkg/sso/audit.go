package sso

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditType enumerates the terminal decisions the engine records.
type AuditType string

const (
	AuditTypeLogin                     AuditType = "Login"
	AuditTypeLoginError                AuditType = "LoginError"
	AuditTypeResetPassword             AuditType = "ResetPassword"
	AuditTypeResetPasswordError        AuditType = "ResetPasswordError"
	AuditTypeResetPasswordConfirm      AuditType = "ResetPasswordConfirm"
	AuditTypeResetPasswordConfirmError AuditType = "ResetPasswordConfirmError"
	AuditTypeUpdateEmail               AuditType = "UpdateEmail"
	AuditTypeUpdateEmailError          AuditType = "UpdateEmailError"
	AuditTypeUpdateEmailRevoke         AuditType = "UpdateEmailRevoke"
	AuditTypeUpdateEmailRevokeError    AuditType = "UpdateEmailRevokeError"
	AuditTypeUpdatePassword            AuditType = "UpdatePassword"
	AuditTypeUpdatePasswordError       AuditType = "UpdatePasswordError"
	AuditTypeUpdatePasswordRevoke      AuditType = "UpdatePasswordRevoke"
	AuditTypeUpdatePasswordRevokeError AuditType = "UpdatePasswordRevokeError"
	AuditTypeOauth2Login               AuditType = "Oauth2Login"
	AuditTypeOauth2LoginError          AuditType = "Oauth2LoginError"
	AuditTypeKeyVerifyError            AuditType = "KeyVerifyError"
	AuditTypeKeyRevoke                 AuditType = "KeyRevoke"
	AuditTypeKeyRevokeError            AuditType = "KeyRevokeError"
	AuditTypeTokenVerifyError          AuditType = "TokenVerifyError"
	AuditTypeTokenRefresh              AuditType = "TokenRefresh"
	AuditTypeTokenRefreshError         AuditType = "TokenRefreshError"
	AuditTypeTokenRevoke               AuditType = "TokenRevoke"
	AuditTypeTokenRevokeError          AuditType = "TokenRevokeError"
	AuditTypeTotpError                 AuditType = "TotpError"
)

// AuditMessage is the reason recorded in an audit's data payload.
type AuditMessage string

const (
	AuditMessageServiceNotFound           AuditMessage = "ServiceNotFound"
	AuditMessageServiceDisabled           AuditMessage = "ServiceDisabled"
	AuditMessageServiceMismatch           AuditMessage = "ServiceMismatch"
	AuditMessageUserNotFound              AuditMessage = "UserNotFound"
	AuditMessageUserDisabled              AuditMessage = "UserDisabled"
	AuditMessageKeyNotFound               AuditMessage = "KeyNotFound"
	AuditMessageKeyUndefined              AuditMessage = "KeyUndefined"
	AuditMessageKeyDisabledOrRevoked      AuditMessage = "KeyDisabledOrRevoked"
	AuditMessagePasswordNotSetOrIncorrect AuditMessage = "PasswordNotSetOrIncorrect"
	AuditMessagePasswordUpdateRequired    AuditMessage = "PasswordUpdateRequired"
	AuditMessageResetPasswordDisabled     AuditMessage = "ResetPasswordDisabled"
	AuditMessageTokenInvalidOrExpired     AuditMessage = "TokenInvalidOrExpired"
	AuditMessageCsrfNotFoundOrUsed        AuditMessage = "CsrfNotFoundOrUsed"
	AuditMessageTotpInvalid               AuditMessage = "TotpInvalid"
	AuditMessageLogin                     AuditMessage = "Login"
	AuditMessageResetPassword             AuditMessage = "ResetPassword"
	AuditMessageResetPasswordConfirm      AuditMessage = "ResetPasswordConfirm"
	AuditMessageUpdateEmail               AuditMessage = "UpdateEmail"
	AuditMessageUpdateEmailRevoke         AuditMessage = "UpdateEmailRevoke"
	AuditMessageUpdatePassword            AuditMessage = "UpdatePassword"
	AuditMessageUpdatePasswordRevoke      AuditMessage = "UpdatePasswordRevoke"
	AuditMessageOauth2Login               AuditMessage = "Oauth2Login"
	AuditMessageKeyRevoke                 AuditMessage = "KeyRevoke"
	AuditMessageTokenRefresh              AuditMessage = "TokenRefresh"
	AuditMessageTokenRevoke               AuditMessage = "TokenRevoke"
)

// Audit is an immutable event. Audits reference entities by id and survive
// their deletion.
type Audit struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UserAgent string          `json:"user_agent"`
	Remote    string          `json:"remote"`
	Forwarded *string         `json:"forwarded,omitempty"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	KeyID     *uuid.UUID      `json:"key_id,omitempty"`
	ServiceID *uuid.UUID      `json:"service_id,omitempty"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	UserKeyID *uuid.UUID      `json:"user_key_id,omitempty"`
}

// AuditMeta is extracted from request headers before the engine runs.
type AuditMeta struct {
	UserAgent string  `json:"user_agent"`
	Remote    string  `json:"remote"`
	Forwarded *string `json:"forwarded,omitempty"`
}

// AuditData is a client-supplied annotation attached to verify, refresh and
// revoke operations. Recorded verbatim.
type AuditData struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type AuditCreate struct {
	Meta      AuditMeta
	Type      string
	Data      json.RawMessage
	KeyID     *uuid.UUID
	ServiceID *uuid.UUID
	UserID    *uuid.UUID
	UserKeyID *uuid.UUID
}

// AuditList queries audits ordered by created_at then id. OffsetID skips
// past the matching id within created_at ties.
type AuditList struct {
	CreatedGE *time.Time
	CreatedLE *time.Time
	OffsetID  *uuid.UUID
	Limit     int64
	Type      []string
	ServiceID *uuid.UUID
}

type auditInternalData struct {
	Message AuditMessage `json:"message"`
}

// AuditBuilder accumulates the identity scope of one request. Each request
// owns exactly one builder; it is not safe for concurrent use.
type AuditBuilder struct {
	meta      AuditMeta
	keyID     *uuid.UUID
	serviceID *uuid.UUID
	userID    *uuid.UUID
	userKeyID *uuid.UUID
}

// NewAuditBuilder creates a builder seeded with the request meta.
func NewAuditBuilder(meta AuditMeta) *AuditBuilder {
	return &AuditBuilder{meta: meta}
}

func (b *AuditBuilder) Meta() AuditMeta {
	return b.meta
}

// SetKey pins the authenticating key (root or service key).
func (b *AuditBuilder) SetKey(key *Key) *AuditBuilder {
	if key != nil {
		id := key.ID
		b.keyID = &id
	}
	return b
}

// SetService pins the service scope.
func (b *AuditBuilder) SetService(service *Service) *AuditBuilder {
	if service != nil {
		id := service.ID
		b.serviceID = &id
	}
	return b
}

// SetUser pins the resolved user.
func (b *AuditBuilder) SetUser(user *User) *AuditBuilder {
	if user != nil {
		id := user.ID
		b.userID = &id
	}
	return b
}

// SetUserKey pins the user's credential key.
func (b *AuditBuilder) SetUserKey(key *Key) *AuditBuilder {
	if key != nil {
		id := key.ID
		b.userKeyID = &id
	}
	return b
}

// CreateInternal appends one audit record snapshotting the current scope,
// with data {"message": msg}.
func (b *AuditBuilder) CreateInternal(ctx context.Context, audits AuditRepository, typ AuditType, msg AuditMessage) (*Audit, error) {
	data, err := json.Marshal(auditInternalData{Message: msg})
	if err != nil {
		return nil, ErrInternal(err)
	}
	return audits.Create(ctx, AuditCreate{
		Meta:      b.meta,
		Type:      string(typ),
		Data:      data,
		KeyID:     b.keyID,
		ServiceID: b.serviceID,
		UserID:    b.userID,
		UserKeyID: b.userKeyID,
	})
}

// CreateData appends one audit record carrying a client-supplied payload.
func (b *AuditBuilder) CreateData(ctx context.Context, audits AuditRepository, data AuditData) (*Audit, error) {
	return audits.Create(ctx, AuditCreate{
		Meta:      b.meta,
		Type:      data.Type,
		Data:      data.Data,
		KeyID:     b.keyID,
		ServiceID: b.serviceID,
		UserID:    b.userID,
		UserKeyID: b.userKeyID,
	})
}
