package security

// Test index:
// 1. TestEncryptDecryptRoundTrip
// 2. TestDecryptRejectsGarbage

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret := "0xdeadbeefcafe0123456789"

	encrypted, err := EncryptString(secret)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if encrypted == secret {
		t.Fatal("ciphertext must differ from plaintext")
	}

	// a second encryption uses a fresh salt and nonce
	encrypted2, err := EncryptString(secret)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if encrypted == encrypted2 {
		t.Fatal("two encryptions of the same value must not match")
	}

	decrypted, err := DecryptString(encrypted)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if decrypted != secret {
		t.Fatalf("round trip mismatch: got %q", decrypted)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	if _, err := DecryptString("not-base64!!"); err == nil {
		t.Fatal("expected error for invalid encoding")
	}
	if _, err := DecryptString("c2hvcnQ="); err == nil {
		t.Fatal("expected error for truncated ciphertext")
	}
	// tampered ciphertext fails authentication
	encrypted, err := EncryptString("secret")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	tampered := encrypted[:len(encrypted)-5] + "AAAA="
	if _, err := DecryptString(tampered); err == nil {
		t.Fatal("expected tampered ciphertext to fail")
	}
}
