package user

import (
	"testing"
	"time"

	"github.com/trezcool/placegrade/core"
)

func TestMakeVerifyToken(t *testing.T) {
	conf := &core.Config{SecretKey: "secret"}
	conf.Auth.SignInTokenTimeout = 15 * time.Minute
	tg := newTokenGenerator(conf)

	now := time.Now().UTC()
	usr := User{
		ID:        "8f14e45f-ceea-467f-a8ad-8e6b1f3f1e01",
		Email:     "t@test.test",
		CreatedAt: now,
		UpdatedAt: now,
	}

	validToken := tg.makeToken(usr)

	// generate an expired token
	late := conf.Auth.SignInTokenTimeout + time.Minute
	nowFunc = func() time.Time { return time.Now().Add(-late) }
	expiredToken := tg.makeToken(usr)
	nowFunc = time.Now // reset

	signedIn := usr
	signedIn.LastLogin = now.Add(time.Second)

	otherKey := newTokenGenerator(&core.Config{SecretKey: "other"})

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: ErrInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: ErrInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig", wantErr: ErrInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig", wantErr: ErrInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig", wantErr: ErrInvalidToken},
		{name: "other user", usr: User{ID: "x", Email: usr.Email}, token: validToken, wantErr: ErrInvalidToken},
		{name: "other key", usr: usr, token: otherKey.makeToken(usr), wantErr: ErrInvalidToken},
		{name: "already used", usr: signedIn, token: validToken, wantErr: ErrInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: ErrTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tg.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "8f14e45f-ceea-467f-a8ad-8e6b1f3f1e01"}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID() error = %v", err)
	}
	if id != usr.ID {
		t.Errorf("decodeUID() = %q, want %q", id, usr.ID)
	}

	if _, err = decodeUID("!!not-base64!!"); err == nil {
		t.Error("decodeUID() expected an error")
	}
}
