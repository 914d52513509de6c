package authkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskify-stack/authkit/store"
	"github.com/taskify-stack/authkit/token"
)

// Service orchestrates the signed-token codec, the shared store, and the
// time source into the token lifecycle: issuance, verification, refresh,
// and revocation. Instances are built through [Builder.Build] and are safe
// for concurrent use.
type Service struct {
	config  Config
	codec   *token.Codec
	store   *store.Store
	now     func() time.Time
	logger  *slog.Logger
	audit   *auditDispatcher
	metrics *Metrics
}

// Close flushes and stops the audit dispatcher. It does not close the
// Redis client, which the caller owns.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the operation counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *Service) emit(ctx context.Context, eventType, subject string, success bool, err error) {
	if s == nil || s.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: s.now(),
		EventType: eventType,
		Subject:   subject,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.audit.Emit(ctx, event)
}

// IssueAccessToken mints a short-lived stateless access token for subject.
// Extra claims are merged into the payload verbatim; reserved claim names
// (user_id, exp, iat, type) win on conflict. Access tokens are never stored
// server-side, so this performs no store round trip.
func (s *Service) IssueAccessToken(subject string, extra map[string]any) (string, error) {
	if s == nil || s.codec == nil {
		return "", ErrServiceNotReady
	}

	claims := s.codec.NewClaims(subject, token.TypeAccess, s.config.Token.AccessTTL, extra)
	signed, err := s.codec.Encode(claims)
	if err != nil {
		s.emit(context.Background(), AuditAccessIssued, subject, false, err)
		return "", err
	}

	s.metricInc(MetricAccessIssued)
	s.emit(context.Background(), AuditAccessIssued, subject, true, nil)
	return signed, nil
}

// IssueRefreshToken mints a refresh token for subject and registers it as
// the subject's single live refresh token, overwriting any predecessor.
// The overwrite is last-write-wins: concurrent issuance for one subject is
// not serialized, and the loser's token will fail the registry check in
// [Service.Refresh].
//
// When the registry write fails the minted token is still returned together
// with an [ErrStoreUnavailable]-wrapped error, so callers can choose between
// degrading (hand the unregistered token out anyway) and failing closed.
func (s *Service) IssueRefreshToken(ctx context.Context, subject string) (string, error) {
	if s == nil || s.codec == nil {
		return "", ErrServiceNotReady
	}

	claims := s.codec.NewClaims(subject, token.TypeRefresh, s.config.Token.RefreshTTL, nil)
	signed, err := s.codec.Encode(claims)
	if err != nil {
		s.emit(ctx, AuditRefreshIssued, subject, false, err)
		return "", err
	}

	if s.store != nil {
		if err := s.store.SetWithTTL(ctx, refreshRegistryKey(subject), signed, s.config.Token.RefreshTTL); err != nil {
			s.metricInc(MetricStoreUnavailable)
			s.logger.Warn("authkit: refresh registry write failed",
				slog.String("subject", subject),
				slog.Any("err", err))
			s.emit(ctx, AuditRefreshIssued, subject, false, err)
			return signed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	s.metricInc(MetricRefreshIssued)
	s.emit(ctx, AuditRefreshIssued, subject, true, nil)
	return signed, nil
}

// Verify is the boolean authorization gate: it returns true only when the
// token is not blacklisted, decodes under the configured key, is unexpired,
// and carries the expected type. Every rejection cause collapses to false;
// store outages are additionally logged so operators can tell an outage
// apart from a denied credential.
func (s *Service) Verify(ctx context.Context, tokenStr string, expected token.Type) bool {
	err := s.Check(ctx, tokenStr, expected)
	if err == nil {
		s.metricInc(MetricVerifySuccess)
		return true
	}

	if errors.Is(err, ErrStoreUnavailable) {
		s.metricInc(MetricStoreUnavailable)
		s.logger.Warn("authkit: verification degraded by store outage", slog.Any("err", err))
	}
	s.metricInc(MetricVerifyFailure)
	return false
}

// Check runs the same gate as [Service.Verify] but returns the tagged
// rejection kind: [ErrTokenBlacklisted], [ErrTokenMalformed],
// [ErrSignatureInvalid], [ErrTokenExpired], [ErrTokenTypeMismatch], or an
// [ErrStoreUnavailable]-wrapped transport failure. The blacklist is
// consulted before the signature is checked.
func (s *Service) Check(ctx context.Context, tokenStr string, expected token.Type) error {
	if s == nil || s.codec == nil {
		return ErrServiceNotReady
	}

	blacklisted, err := s.isBlacklisted(ctx, tokenStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if blacklisted {
		return ErrTokenBlacklisted
	}

	claims, err := s.codec.Decode(tokenStr)
	if err != nil {
		return translateDecodeError(err)
	}

	if claims.Type() != expected {
		return ErrTokenTypeMismatch
	}

	return nil
}

// DecodeClaims runs the blacklist-then-decode path and returns the claim
// set for downstream consumers (extracting subject, role, and other extras).
// It does not check the token type.
func (s *Service) DecodeClaims(ctx context.Context, tokenStr string) (token.Claims, error) {
	if s == nil || s.codec == nil {
		return nil, ErrServiceNotReady
	}

	blacklisted, err := s.isBlacklisted(ctx, tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if blacklisted {
		return nil, ErrTokenBlacklisted
	}

	claims, err := s.codec.Decode(tokenStr)
	if err != nil {
		return nil, translateDecodeError(err)
	}
	return claims, nil
}

// Refresh exchanges a valid, currently-registered refresh token for a fresh
// access token carrying the old token's extra claims. The presented token
// must exactly equal the registry entry for its subject: a superseded
// refresh token is still cryptographically valid but no longer registered,
// and is rejected with [ErrRefreshMismatch].
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if s == nil || s.codec == nil {
		return "", ErrServiceNotReady
	}

	if err := s.Check(ctx, refreshToken, token.TypeRefresh); err != nil {
		s.metricInc(MetricRefreshFailure)
		s.emit(ctx, AuditRefreshed, "", false, err)
		return "", err
	}

	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		return "", translateDecodeError(err)
	}

	subject := claims.Subject()
	if subject == "" {
		s.metricInc(MetricRefreshFailure)
		s.emit(ctx, AuditRefreshed, "", false, ErrSubjectMissing)
		return "", ErrSubjectMissing
	}

	if s.store != nil {
		registered, found, err := s.store.Get(ctx, refreshRegistryKey(subject))
		if err != nil {
			s.metricInc(MetricStoreUnavailable)
			s.metricInc(MetricRefreshFailure)
			s.emit(ctx, AuditRefreshed, subject, false, err)
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !found || registered != refreshToken {
			s.metricInc(MetricRefreshSuperseded)
			s.metricInc(MetricRefreshFailure)
			s.emit(ctx, AuditRefreshed, subject, false, ErrRefreshMismatch)
			return "", ErrRefreshMismatch
		}
	}

	access, err := s.IssueAccessToken(subject, claims.Extra())
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		return "", err
	}

	s.metricInc(MetricRefreshSuccess)
	s.emit(ctx, AuditRefreshed, subject, true, nil)
	return access, nil
}

// Revoke blacklists a token for the remainder of its lifetime. The token
// must decode under the configured key (expiry is ignored so that a
// well-formed expired token still decodes); if its remaining lifetime is
// already zero or negative the token is harmless and revocation succeeds
// without a store write, so the blacklist never accumulates entries for
// already-expired tokens.
func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	if s == nil || s.codec == nil {
		return ErrServiceNotReady
	}
	if s.store == nil {
		return ErrNoStore
	}

	claims, err := s.codec.DecodeExpired(tokenStr)
	if err != nil {
		s.emit(ctx, AuditTokenRevoked, "", false, err)
		return translateDecodeError(err)
	}

	expiresAt, ok := claims.ExpiresAt()
	if !ok {
		s.emit(ctx, AuditTokenRevoked, claims.Subject(), false, ErrTokenMalformed)
		return ErrTokenMalformed
	}

	remaining := int64(expiresAt.Sub(s.now()).Seconds())
	if remaining <= 0 {
		s.emit(ctx, AuditTokenRevoked, claims.Subject(), true, nil)
		return nil
	}

	ttl := time.Duration(remaining) * time.Second
	if err := s.store.SetWithTTL(ctx, blacklistKey(tokenStr), blacklistSentinel, ttl); err != nil {
		s.metricInc(MetricStoreUnavailable)
		s.emit(ctx, AuditTokenRevoked, claims.Subject(), false, err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.metricInc(MetricTokenRevoked)
	s.emit(ctx, AuditTokenRevoked, claims.Subject(), true, nil)
	return nil
}

// RevokeAllForSubject deletes the subject's refresh-token registry entry,
// cutting off future refresh exchanges. Previously issued access tokens
// stay valid until natural expiry; access tokens are stateless and are not
// tracked server-side.
func (s *Service) RevokeAllForSubject(ctx context.Context, subject string) error {
	if s == nil || s.codec == nil {
		return ErrServiceNotReady
	}
	if s.store == nil {
		return ErrNoStore
	}

	if err := s.store.Delete(ctx, refreshRegistryKey(subject)); err != nil {
		s.metricInc(MetricStoreUnavailable)
		s.emit(ctx, AuditSubjectRevoked, subject, false, err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.metricInc(MetricSubjectRevoked)
	s.emit(ctx, AuditSubjectRevoked, subject, true, nil)
	return nil
}

// isBlacklisted consults the blacklist namespace. Without a store every
// token is considered non-blacklisted: access tokens stay verifiable in
// stateless deployments.
func (s *Service) isBlacklisted(ctx context.Context, tokenStr string) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	return s.store.Exists(ctx, blacklistKey(tokenStr))
}

func translateDecodeError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}
