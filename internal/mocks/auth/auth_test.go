package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/greenhouse/internal/domain/auth"
	"github.com/target/greenhouse/internal/ports"
)

func TestScriptedProvider_EmitAndRecord(t *testing.T) {
	p := NewScriptedProvider()
	unsub, ch := p.Subscribe()
	defer unsub()

	require.NoError(t, p.EmitSignedIn(VerifiedSession("u1", "u1@example.com")))
	ev := <-ch
	assert.Equal(t, domainauth.EventSignedIn, ev.Type)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "u1", ev.Session.User.ID)
	assert.True(t, ev.Session.User.EmailVerified())

	ctx := context.Background()
	require.NoError(t, p.SignIn(ctx, "a@example.com", "pw"))
	require.NoError(t, p.SignUp(ctx, ports.SignUpInput{Email: "b@example.com"}))
	require.NoError(t, p.SignOut(ctx))
	assert.Equal(t, []string{"a@example.com"}, p.SignIns())
	assert.Len(t, p.SignUps(), 1)
	assert.Equal(t, 1, p.SignOuts())
}

func TestScriptedProvider_CurrentSession(t *testing.T) {
	p := NewScriptedProvider()
	sess, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)

	restored := VerifiedSession("u2", "u2@example.com")
	p.Restored = &restored
	sess, err = p.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u2", sess.User.ID)
}

func TestMemoryFlagStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFlagStore()

	ok, err := s.Delivered(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkDelivered(ctx, "u1"))
	ok, err = s.Delivered(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, s.Reads())
	assert.Equal(t, 1, s.Writes())

	s.ReadErr = ErrInjected
	_, err = s.Delivered(ctx, "u1")
	assert.ErrorIs(t, err, ErrInjected)
}

func TestMemorySessionPersistence(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionPersistence()

	got, err := s.Load(ctx, "device")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.Error(t, s.Save(ctx, "", domainauth.Session{}))
	require.NoError(t, s.Save(ctx, "device", VerifiedSession("u1", "u1@example.com")))
	got, err = s.Load(ctx, "device")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.User.ID)

	require.NoError(t, s.Delete(ctx, "device"))
	got, err = s.Load(ctx, "device")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())
}
