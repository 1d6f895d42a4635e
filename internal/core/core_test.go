package core

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"

	"github.com/hpungsan/arbiter/internal/config"
	"github.com/hpungsan/arbiter/internal/db"
	"github.com/hpungsan/arbiter/internal/errors"
	"github.com/hpungsan/arbiter/internal/mode"
)

func digestOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func testRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	base := t.TempDir()
	database, err := db.Init(base)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	rt, err := New(base, config.Merge(config.DefaultConfig(), cfg), database, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rt
}

func TestNewRejectsMalformedDigest(t *testing.T) {
	base := t.TempDir()
	database, err := db.Init(base)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	defer database.Close()

	cfg := config.DefaultConfig()
	cfg.AdminDigestHex = "not-a-digest"
	_, err = New(base, cfg, database, nil)
	if !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRejectsUnknownPromptSection(t *testing.T) {
	base := t.TempDir()
	database, err := db.Init(base)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	defer database.Close()

	cfg := config.DefaultConfig()
	cfg.PromptSections = map[string]string{"mystery": "text"}
	_, err = New(base, cfg, database, nil)
	if !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAdvance(t *testing.T) {
	rt := testRuntime(t, &config.Config{})

	tr := rt.Advance("ariadne, companion mode")
	if tr.FromMode != mode.Default || tr.ToMode != mode.Companion {
		t.Errorf("unexpected transition: %+v", tr)
	}
	if rt.State.Current() != mode.Companion {
		t.Errorf("state not updated: %s", rt.State.Current())
	}

	tr = rt.Advance("please refactor this")
	if tr.ToMode != mode.Default {
		t.Errorf("task indicator should revert to default, got %s", tr.ToMode)
	}
}

func TestEffectiveModeOverlay(t *testing.T) {
	rt := testRuntime(t, &config.Config{AdminDigestHex: digestOf("secret123")})

	rt.Advance("ariadne, companion mode")
	if rt.EffectiveMode() != mode.Companion {
		t.Fatalf("expected companion, got %s", rt.EffectiveMode())
	}

	res := rt.Elevate("secret123")
	if !res.Success {
		t.Fatal("elevation should succeed")
	}
	if rt.EffectiveMode() != mode.Privileged {
		t.Errorf("expected privileged overlay, got %s", rt.EffectiveMode())
	}
	// The conversational mode underneath is untouched.
	if rt.State.Current() != mode.Companion {
		t.Errorf("conversational mode changed: %s", rt.State.Current())
	}

	rt.Session.Terminate()
	if rt.EffectiveMode() != mode.Companion {
		t.Errorf("expected companion after termination, got %s", rt.EffectiveMode())
	}
}

func TestElevateFailsClosedWithoutDigest(t *testing.T) {
	rt := testRuntime(t, &config.Config{})

	if res := rt.Elevate("anything"); res.Success {
		t.Error("elevation must fail when no digest is configured")
	}
}
