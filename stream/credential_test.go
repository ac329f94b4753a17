package stream

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnsureFreshCredentialStillFresh(t *testing.T) {
	now := time.Now()
	stored := Credential{Token: "tok", Expiry: now.Add(time.Hour)}

	refreshCalled := false
	got, updated, err := EnsureFreshCredential(stored, now, func(Credential) (Credential, error) {
		refreshCalled = true
		return Credential{}, nil
	})
	require.NoError(t, err)
	require.Nil(t, updated)
	require.Equal(t, stored, got)
	require.False(t, refreshCalled)
}

func TestEnsureFreshCredentialNoExpirySet(t *testing.T) {
	stored := Credential{Token: "tok"}
	got, updated, err := EnsureFreshCredential(stored, time.Now(), nil)
	require.NoError(t, err)
	require.Nil(t, updated)
	require.Equal(t, stored, got)
}

func TestEnsureFreshCredentialRefreshesExpired(t *testing.T) {
	now := time.Now()
	stored := Credential{Token: "old", RefreshToken: "refresh", Expiry: now.Add(-time.Minute)}
	fresh := Credential{Token: "new", RefreshToken: "refresh", Expiry: now.Add(time.Hour)}

	got, updated, err := EnsureFreshCredential(stored, now, func(c Credential) (Credential, error) {
		require.Equal(t, stored, c)
		return fresh, nil
	})
	require.NoError(t, err)
	require.Equal(t, fresh, got)
	require.NotNil(t, updated)
	require.Equal(t, fresh, *updated)
}

func TestEnsureFreshCredentialExpiredWithoutRefresh(t *testing.T) {
	now := time.Now()
	stored := Credential{Token: "old", RefreshToken: "refresh", Expiry: now.Add(-time.Minute)}

	_, _, err := EnsureFreshCredential(stored, now, nil)
	require.Error(t, err)
}

func TestEnsureFreshCredentialExpiredWithoutRefreshToken(t *testing.T) {
	now := time.Now()
	stored := Credential{Token: "old", Expiry: now.Add(-time.Minute)}

	_, _, err := EnsureFreshCredential(stored, now, func(Credential) (Credential, error) {
		return Credential{}, nil
	})
	require.Error(t, err)
}

func TestEnsureFreshCredentialRefreshFailure(t *testing.T) {
	now := time.Now()
	stored := Credential{Token: "old", RefreshToken: "refresh", Expiry: now.Add(-time.Minute)}

	_, _, err := EnsureFreshCredential(stored, now, func(Credential) (Credential, error) {
		return Credential{}, fmt.Errorf("authorization server says no")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "authorization server says no")
}

func TestStaticResolverPersistsRefreshedCredential(t *testing.T) {
	dest := Destination{IngestURL: "rtmp://ingest.example.com/live", IngestKey: "key"}
	fresh := Credential{Token: "new", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}

	var persisted *Credential
	r := &StaticResolver{
		Destination: dest,
		Credential:  Credential{Token: "old", RefreshToken: "refresh", Expiry: time.Now().Add(-time.Minute)},
		Refresh: func(Credential) (Credential, error) {
			return fresh, nil
		},
		Persist: func(c Credential) error {
			persisted = &c
			return nil
		},
	}

	got, err := r.Resolve("vid-1")
	require.NoError(t, err)
	require.Equal(t, dest, got)
	require.NotNil(t, persisted)
	require.Equal(t, fresh, *persisted)
	require.Equal(t, fresh, r.Credential)
}

func TestStaticResolverRejectsIncompleteDestination(t *testing.T) {
	r := &StaticResolver{Destination: Destination{IngestURL: "rtmp://ingest.example.com/live"}}
	_, err := r.Resolve("vid-1")
	require.Error(t, err)
}
