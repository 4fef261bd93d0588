package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestTokenStoreKeyring(t *testing.T) {
	keyring.MockInit()
	k := NewTokenStore("cycles-test", "")

	if _, err := k.Token("api"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
	if err := k.SetToken("api", "secret-123"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	got, err := k.Token("api")
	if err != nil || got != "secret-123" {
		t.Fatalf("Token = %q, %v", got, err)
	}
	if err := k.DeleteToken("api"); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := k.Token("api"); !errors.Is(err, ErrNoToken) {
		t.Errorf("err after delete = %v, want ErrNoToken", err)
	}
	if err := k.DeleteToken("api"); err != nil {
		t.Errorf("deleting a missing token: %v", err)
	}
}

func TestTokenStoreFallback(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: secret service not available"))
	path := filepath.Join(t.TempDir(), "secrets", "tokens.json")
	k := NewTokenStore("cycles-test", path)

	if err := k.SetToken("api", "file-token"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("fallback file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("fallback file mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := k.Token("api")
	if err != nil || got != "file-token" {
		t.Fatalf("Token = %q, %v", got, err)
	}
	if err := k.DeleteToken("api"); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := k.Token("api"); !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}

func TestTokenStoreNoFallback(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring backend not available"))
	k := NewTokenStore("", "")

	if err := k.SetToken("api", "x"); err == nil {
		t.Error("SetToken succeeded with no keychain and no fallback")
	}
	if err := k.SetToken(" ", "x"); err == nil {
		t.Error("empty name accepted")
	}
}
