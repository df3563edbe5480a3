package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	t.Parallel()
	svc := NewService("test", []byte("secret"), time.Hour)

	session, err := svc.Issue("")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccountID)
	assert.NotEmpty(t, session.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)

	accountID, err := svc.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.AccountID, accountID)
}

func TestIssueKeepsExplicitAccountID(t *testing.T) {
	t.Parallel()
	svc := NewService("test", []byte("secret"), time.Hour)
	session, err := svc.Issue("acct-42")
	require.NoError(t, err)
	assert.Equal(t, "acct-42", session.AccountID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	t.Parallel()
	svc := NewService("test", []byte("secret"), time.Hour)
	session, err := svc.Issue("")
	require.NoError(t, err)

	other := NewService("test", []byte("different"), time.Hour)
	_, err = other.Parse(session.Token)
	require.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	t.Parallel()
	svc := NewService("test", []byte("secret"), -time.Minute)
	session, err := svc.Issue("")
	require.NoError(t, err)

	_, err = svc.Parse(session.Token)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()
	svc := NewService("test", []byte("secret"), time.Hour)
	_, err := svc.Parse("not-a-token")
	require.Error(t, err)
}
