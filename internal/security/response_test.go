package security

import (
	"bytes"
	"testing"
)

var (
	testSalt  = bytes.Repeat([]byte{0x5a}, 16)
	testNonce = bytes.Repeat([]byte{0xa5}, 32)
)

func TestRespondDeterministic(t *testing.T) {
	first, err := Respond("correct horse", testSalt, testNonce)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	second, err := Respond("correct horse", testSalt, testNonce)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("responses differ for identical inputs")
	}
	if len(first) != ResponseSize {
		t.Fatalf("response length = %d, want %d", len(first), ResponseSize)
	}
}

func TestRespondDependsOnEveryInput(t *testing.T) {
	base, err := Respond("correct horse", testSalt, testNonce)
	if err != nil {
		t.Fatal(err)
	}

	otherNonce := append([]byte(nil), testNonce...)
	otherNonce[0] ^= 1
	otherSalt := append([]byte(nil), testSalt...)
	otherSalt[0] ^= 1

	variants := map[string][]byte{}
	if variants["password"], err = Respond("battery staple", testSalt, testNonce); err != nil {
		t.Fatal(err)
	}
	if variants["nonce"], err = Respond("correct horse", testSalt, otherNonce); err != nil {
		t.Fatal(err)
	}
	if variants["salt"], err = Respond("correct horse", otherSalt, testNonce); err != nil {
		t.Fatal(err)
	}
	for name, got := range variants {
		if bytes.Equal(base, got) {
			t.Errorf("changing %s did not change the response", name)
		}
	}
}

func TestVerify(t *testing.T) {
	response, err := Respond("correct horse", testSalt, testNonce)
	if err != nil {
		t.Fatal(err)
	}
	if !Verify("correct horse", testSalt, testNonce, response) {
		t.Fatalf("valid response rejected")
	}
	if Verify("wrong", testSalt, testNonce, response) {
		t.Fatalf("response accepted for wrong password")
	}
	if Verify("correct horse", testSalt, testNonce, response[:8]) {
		t.Fatalf("truncated response accepted")
	}
}

func TestRespondAcceptsEmptyPassword(t *testing.T) {
	response, err := Respond("", testSalt, testNonce)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !Verify("", testSalt, testNonce, response) {
		t.Fatalf("empty password response rejected")
	}
	if Verify("correct horse", testSalt, testNonce, response) {
		t.Fatalf("empty password response matched a real password")
	}
}
