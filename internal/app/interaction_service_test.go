package app

import (
	"context"
	"testing"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiation_AcceptRepricesLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.batch(t, "b-1", 10, "20")
	sess := f.session(t)
	item, err := f.add(t, sess.ID, "b-1", 2)
	require.NoError(t, err)
	f.pub.reset()

	n, err := f.interaction.RequestNegotiation(ctx, RequestNegotiationInput{
		SessionID: sess.ID, ItemID: item.ID, ProposedPrice: decimal.MustParse("17.50"), Note: "bulk", Role: domain.RoleClient,
	})
	require.NoError(t, err)
	assert.Equal(t, "20", n.CurrentPrice.String())

	_, err = f.interaction.RespondNegotiation(ctx, RespondNegotiationInput{
		SessionID: sess.ID, NegotiationID: n.ID, ItemID: item.ID, Accept: true, Price: decimal.MustParse("18"), Role: domain.RoleClient,
	})
	require.ErrorIs(t, err, domain.ErrHostOnly)

	out, err := f.interaction.RespondNegotiation(ctx, RespondNegotiationInput{
		SessionID: sess.ID, NegotiationID: n.ID, ItemID: item.ID, Accept: true, Price: decimal.MustParse("18"), Role: domain.RoleHost,
	})
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, "18", out.Price.String())
	require.NotNil(t, out.Item)
	assert.Equal(t, domain.PriceSourceOverride, out.Item.PriceSource)

	assert.Equal(t, []broadcast.EventType{
		broadcast.EventNegotiationRequested,
		broadcast.EventPriceChanged,
		broadcast.EventCartUpdated,
		broadcast.EventNegotiationResponded,
	}, f.pub.types(sess.ID))
}

func TestNegotiation_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.batch(t, "b-1", 10, "20")
	sess := f.session(t)
	item, err := f.add(t, sess.ID, "b-1", 1)
	require.NoError(t, err)

	out, err := f.interaction.RespondNegotiation(ctx, RespondNegotiationInput{
		SessionID: sess.ID, ItemID: item.ID, Accept: false, Role: domain.RoleHost,
	})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, "20", out.Price.String())
	assert.Nil(t, out.Item)

	o, err := f.store.GetOverride(ctx, sess.ID, item.ProductID)
	require.NoError(t, err)
	assert.Nil(t, o)

	_, err = f.interaction.RequestNegotiation(ctx, RequestNegotiationInput{
		SessionID: sess.ID, ItemID: "missing", ProposedPrice: decimal.FromInt(1), Role: domain.RoleClient,
	})
	require.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestRequestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.batch(t, "b-1", 10, "50")
	sess := f.session(t)
	_, err := f.add(t, sess.ID, "b-1", 2)
	require.NoError(t, err)
	f.pub.reset()

	check, err := f.interaction.RequestCheckout(ctx, sess.ID, domain.RoleClient)
	require.NoError(t, err)
	assert.True(t, check.Approved)
	assert.Equal(t, "100", check.CartTotal.String())
	assert.Equal(t, []broadcast.EventType{broadcast.EventCheckoutRequested}, f.pub.types(sess.ID))

	_, err = f.sessions.UpdateStatus(ctx, sess.ID, domain.SessionStatusEnded)
	require.NoError(t, err)
	_, err = f.interaction.RequestCheckout(ctx, sess.ID, domain.RoleClient)
	require.ErrorIs(t, err, domain.ErrInvalidSessionState)
}
