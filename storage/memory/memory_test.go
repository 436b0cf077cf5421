package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cobaltlab/authd/internal/testutil"
	"github.com/cobaltlab/authd/storage"
)

// ============================================================
// SessionStore Tests
// ============================================================

func TestStore_SaveSession(t *testing.T) {
	store := New()
	defer store.Stop()

	session := testutil.GenerateTestSession()

	err := store.SaveSession(context.Background(), session)
	if err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := store.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}

	if got.ClientID != session.ClientID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, session.ClientID)
	}
	if got.RedirectURI != session.RedirectURI {
		t.Errorf("RedirectURI = %q, want %q", got.RedirectURI, session.RedirectURI)
	}
}

func TestStore_SaveSession_Nil(t *testing.T) {
	store := New()
	defer store.Stop()

	if err := store.SaveSession(context.Background(), nil); err == nil {
		t.Error("SaveSession() with nil session should return error")
	}
}

func TestStore_SaveSession_EmptyID(t *testing.T) {
	store := New()
	defer store.Stop()

	session := testutil.GenerateTestSession()
	session.ID = ""

	if err := store.SaveSession(context.Background(), session); err == nil {
		t.Error("SaveSession() with empty id should return error")
	}
}

func TestStore_GetSession_NotFound(t *testing.T) {
	store := New()
	defer store.Stop()

	_, err := store.GetSession(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("GetSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_GetSession_Expired(t *testing.T) {
	store := New()
	defer store.Stop()

	session := testutil.GenerateTestSession()
	session.ExpiresAt = time.Now().Add(-time.Minute)

	if err := store.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	_, err := store.GetSession(context.Background(), session.ID)
	if !errors.Is(err, storage.ErrSessionExpired) {
		t.Errorf("GetSession() error = %v, want ErrSessionExpired", err)
	}
}

func TestStore_ConsumeSession(t *testing.T) {
	store := New()
	defer store.Stop()

	session := testutil.GenerateTestSession()
	if err := store.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := store.ConsumeSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ConsumeSession() error = %v", err)
	}
	if got.ClientID != session.ClientID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, session.ClientID)
	}

	// Second consumption must fail: the session is single-use
	_, err = store.ConsumeSession(context.Background(), session.ID)
	if !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("second ConsumeSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_ConsumeSession_Expired(t *testing.T) {
	store := New()
	defer store.Stop()

	session := testutil.GenerateTestSession()
	session.ExpiresAt = time.Now().Add(-time.Minute)

	if err := store.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	_, err := store.ConsumeSession(context.Background(), session.ID)
	if !errors.Is(err, storage.ErrSessionExpired) {
		t.Errorf("ConsumeSession() error = %v, want ErrSessionExpired", err)
	}

	// Expired session is deleted on the consumption attempt
	_, err = store.ConsumeSession(context.Background(), session.ID)
	if !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("ConsumeSession() after expiry error = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_ConsumeSession_Concurrent(t *testing.T) {
	store := New()
	defer store.Stop()

	session := testutil.GenerateTestSession()
	if err := store.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeSession(context.Background(), session.ID); err == nil {
				successes <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Errorf("ConsumeSession() succeeded %d times, want exactly 1", count)
	}
}

// ============================================================
// CodeStore Tests
// ============================================================

func TestStore_SaveCode(t *testing.T) {
	store := New()
	defer store.Stop()

	code := testutil.GenerateTestCode()

	if err := store.SaveCode(context.Background(), code); err != nil {
		t.Fatalf("SaveCode() error = %v", err)
	}

	got, err := store.GetCode(context.Background(), code.Value)
	if err != nil {
		t.Fatalf("GetCode() error = %v", err)
	}
	if got.ClientID != code.ClientID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, code.ClientID)
	}
	if got.Consumed {
		t.Error("freshly saved code should not be consumed")
	}
}

func TestStore_SaveCode_Nil(t *testing.T) {
	store := New()
	defer store.Stop()

	if err := store.SaveCode(context.Background(), nil); err == nil {
		t.Error("SaveCode() with nil code should return error")
	}
}

func TestStore_RedeemCode(t *testing.T) {
	store := New()
	defer store.Stop()

	code := testutil.GenerateTestCode()
	if err := store.SaveCode(context.Background(), code); err != nil {
		t.Fatalf("SaveCode() error = %v", err)
	}

	got, err := store.RedeemCode(context.Background(), code.Value, code.ClientID, code.RedirectURI)
	if err != nil {
		t.Fatalf("RedeemCode() error = %v", err)
	}
	if !got.Consumed {
		t.Error("redeemed code should be marked consumed")
	}
}

func TestStore_RedeemCode_Replay(t *testing.T) {
	store := New()
	defer store.Stop()

	code := testutil.GenerateTestCode()
	if err := store.SaveCode(context.Background(), code); err != nil {
		t.Fatalf("SaveCode() error = %v", err)
	}

	if _, err := store.RedeemCode(context.Background(), code.Value, code.ClientID, code.RedirectURI); err != nil {
		t.Fatalf("first RedeemCode() error = %v", err)
	}

	got, err := store.RedeemCode(context.Background(), code.Value, code.ClientID, code.RedirectURI)
	if !errors.Is(err, storage.ErrCodeConsumed) {
		t.Fatalf("replay RedeemCode() error = %v, want ErrCodeConsumed", err)
	}
	// The stored code comes back on replay so the caller can log its binding
	if got == nil || got.ClientID != code.ClientID {
		t.Error("replay should return the stored code alongside the error")
	}
}

func TestStore_RedeemCode_NotFound(t *testing.T) {
	store := New()
	defer store.Stop()

	_, err := store.RedeemCode(context.Background(), "nonexistent", "test-client-id", "https://example.com/callback")
	if !errors.Is(err, storage.ErrCodeNotFound) {
		t.Errorf("RedeemCode() error = %v, want ErrCodeNotFound", err)
	}
}

func TestStore_RedeemCode_ClientMismatch(t *testing.T) {
	store := New()
	defer store.Stop()

	code := testutil.GenerateTestCode()
	if err := store.SaveCode(context.Background(), code); err != nil {
		t.Fatalf("SaveCode() error = %v", err)
	}

	_, err := store.RedeemCode(context.Background(), code.Value, "other-client", code.RedirectURI)
	if !errors.Is(err, storage.ErrCodeClientMismatch) {
		t.Errorf("RedeemCode() error = %v, want ErrCodeClientMismatch", err)
	}

	// A failed redemption must not consume the code
	got, err := store.GetCode(context.Background(), code.Value)
	if err != nil {
		t.Fatalf("GetCode() error = %v", err)
	}
	if got.Consumed {
		t.Error("code should not be consumed after a failed redemption")
	}
}

func TestStore_RedeemCode_RedirectMismatch(t *testing.T) {
	store := New()
	defer store.Stop()

	code := testutil.GenerateTestCode()
	if err := store.SaveCode(context.Background(), code); err != nil {
		t.Fatalf("SaveCode() error = %v", err)
	}

	_, err := store.RedeemCode(context.Background(), code.Value, code.ClientID, "https://evil.example.com/callback")
	if !errors.Is(err, storage.ErrCodeRedirectMismatch) {
		t.Errorf("RedeemCode() error = %v, want ErrCodeRedirectMismatch", err)
	}

	got, err := store.GetCode(context.Background(), code.Value)
	if err != nil {
		t.Fatalf("GetCode() error = %v", err)
	}
	if got.Consumed {
		t.Error("code should not be consumed after a failed redemption")
	}
}

func TestStore_RedeemCode_Expired(t *testing.T) {
	store := New()
	defer store.Stop()

	code := testutil.GenerateTestCode()
	code.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.SaveCode(context.Background(), code); err != nil {
		t.Fatalf("SaveCode() error = %v", err)
	}

	_, err := store.RedeemCode(context.Background(), code.Value, code.ClientID, code.RedirectURI)
	if !errors.Is(err, storage.ErrCodeExpired) {
		t.Errorf("RedeemCode() error = %v, want ErrCodeExpired", err)
	}
}

func TestStore_RedeemCode_ClientMismatchBeforeExpiry(t *testing.T) {
	store := New()
	defer store.Stop()

	// An expired code presented by the wrong client reports the client
	// mismatch, not the expiry: binding checks run first.
	code := testutil.GenerateTestCode()
	code.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.SaveCode(context.Background(), code); err != nil {
		t.Fatalf("SaveCode() error = %v", err)
	}

	_, err := store.RedeemCode(context.Background(), code.Value, "other-client", code.RedirectURI)
	if !errors.Is(err, storage.ErrCodeClientMismatch) {
		t.Errorf("RedeemCode() error = %v, want ErrCodeClientMismatch", err)
	}
}

func TestStore_RedeemCode_Concurrent(t *testing.T) {
	store := New()
	defer store.Stop()

	code := testutil.GenerateTestCode()
	if err := store.SaveCode(context.Background(), code); err != nil {
		t.Fatalf("SaveCode() error = %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	replays := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RedeemCode(context.Background(), code.Value, code.ClientID, code.RedirectURI)
			switch {
			case err == nil:
				successes <- struct{}{}
			case errors.Is(err, storage.ErrCodeConsumed):
				replays <- struct{}{}
			default:
				t.Errorf("unexpected RedeemCode() error = %v", err)
			}
		}()
	}

	wg.Wait()
	close(successes)
	close(replays)

	successCount := 0
	for range successes {
		successCount++
	}
	if successCount != 1 {
		t.Errorf("RedeemCode() succeeded %d times, want exactly 1", successCount)
	}

	replayCount := 0
	for range replays {
		replayCount++
	}
	if replayCount != workers-1 {
		t.Errorf("RedeemCode() replayed %d times, want %d", replayCount, workers-1)
	}
}

// ============================================================
// TokenStore Tests
// ============================================================

func TestStore_SaveToken(t *testing.T) {
	store := New()
	defer store.Stop()

	token := testutil.GenerateTestToken()

	if err := store.SaveToken(context.Background(), token); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	got, err := store.GetToken(context.Background(), token.Value)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if got.ClientID != token.ClientID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, token.ClientID)
	}
	if got.TokenType != "bearer" {
		t.Errorf("TokenType = %q, want %q", got.TokenType, "bearer")
	}
}

func TestStore_SaveToken_Nil(t *testing.T) {
	store := New()
	defer store.Stop()

	if err := store.SaveToken(context.Background(), nil); err == nil {
		t.Error("SaveToken() with nil token should return error")
	}
}

func TestStore_GetToken_NotFound(t *testing.T) {
	store := New()
	defer store.Stop()

	_, err := store.GetToken(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("GetToken() error = %v, want ErrTokenNotFound", err)
	}
}

func TestStore_GetToken_Expired(t *testing.T) {
	store := New()
	defer store.Stop()

	token := testutil.GenerateTestToken()
	token.IssuedAt = time.Now().Add(-2 * time.Hour)

	if err := store.SaveToken(context.Background(), token); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	_, err := store.GetToken(context.Background(), token.Value)
	if !errors.Is(err, storage.ErrTokenExpired) {
		t.Errorf("GetToken() error = %v, want ErrTokenExpired", err)
	}
}

// ============================================================
// Sweep Tests
// ============================================================

func TestStore_Sweep(t *testing.T) {
	store := NewWithInterval(time.Hour) // keep the loop out of the way
	defer store.Stop()

	expiredSession := testutil.GenerateTestSession()
	expiredSession.ExpiresAt = time.Now().Add(-time.Minute)
	liveSession := testutil.GenerateTestSession()

	expiredCode := testutil.GenerateTestCode()
	expiredCode.ExpiresAt = time.Now().Add(-time.Minute)
	liveCode := testutil.GenerateTestCode()

	expiredToken := testutil.GenerateTestToken()
	expiredToken.IssuedAt = time.Now().Add(-2 * time.Hour)
	liveToken := testutil.GenerateTestToken()

	ctx := context.Background()
	for _, err := range []error{
		store.SaveSession(ctx, expiredSession),
		store.SaveSession(ctx, liveSession),
		store.SaveCode(ctx, expiredCode),
		store.SaveCode(ctx, liveCode),
		store.SaveToken(ctx, expiredToken),
		store.SaveToken(ctx, liveToken),
	} {
		if err != nil {
			t.Fatalf("setup error = %v", err)
		}
	}

	store.sweep()

	store.mu.RLock()
	defer store.mu.RUnlock()

	if _, ok := store.sessions[expiredSession.ID]; ok {
		t.Error("expired session should be swept")
	}
	if _, ok := store.sessions[liveSession.ID]; !ok {
		t.Error("live session should survive the sweep")
	}
	if _, ok := store.codes[expiredCode.Value]; ok {
		t.Error("expired code should be swept")
	}
	if _, ok := store.codes[liveCode.Value]; !ok {
		t.Error("live code should survive the sweep")
	}
	if _, ok := store.tokens[expiredToken.Value]; ok {
		t.Error("expired token should be swept")
	}
	if _, ok := store.tokens[liveToken.Value]; !ok {
		t.Error("live token should survive the sweep")
	}

	if got := store.sessionsCountAtomic.Load(); got != 1 {
		t.Errorf("sessions counter = %d, want 1", got)
	}
	if got := store.codesCountAtomic.Load(); got != 1 {
		t.Errorf("codes counter = %d, want 1", got)
	}
	if got := store.tokensCountAtomic.Load(); got != 1 {
		t.Errorf("tokens counter = %d, want 1", got)
	}
}
