package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/coachpanel/backend/internal/model"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubscriptionEcho(fake *fakeSubscriptions) *echo.Echo {
	s := testServer()
	h := NewSubscriptionHandler(s, fake)
	e, requireAuth := newTestEcho(s)

	g := e.Group("/api/subscriptions")
	g.GET("/plans", Handle(h.Handler, h.ListPlans, http.StatusOK, &model.EmptyRequest{}))
	g.GET("/current", Handle(h.Handler, h.Current, http.StatusOK, &model.EmptyRequest{}), requireAuth)
	g.POST("", Handle(h.Handler, h.Create, http.StatusCreated, &model.CreateSubscriptionRequest{}), requireAuth)

	return e
}

func TestSubscriptionHandler_ListPlans(t *testing.T) {
	t.Run("empty list is an array", func(t *testing.T) {
		e := newSubscriptionEcho(&fakeSubscriptions{})

		rec := serve(e, jsonRequest(http.MethodGet, "/api/subscriptions/plans", ""))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("plans carry a formatted price", func(t *testing.T) {
		e := newSubscriptionEcho(&fakeSubscriptions{plans: []model.Plan{
			{ID: "starter-monthly", PriceCents: 29900, Currency: "TRY"},
		}})

		rec := serve(e, jsonRequest(http.MethodGet, "/api/subscriptions/plans", ""))
		require.Equal(t, http.StatusOK, rec.Code)

		var plans []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
		require.Len(t, plans, 1)
		assert.Equal(t, "299.00", plans[0]["price"])
	})
}

func TestSubscriptionHandler_Create(t *testing.T) {
	fake := &fakeSubscriptions{}
	e := newSubscriptionEcho(fake)
	userID := uuid.New()

	rec := serve(e, asUser(jsonRequest(http.MethodPost, "/api/subscriptions", `{"planId":"pro-monthly"}`), userID))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, userID, fake.createdBy)
	assert.Equal(t, "pro-monthly", fake.planID)

	var body model.SubscriptionWithPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.SubscriptionStatusTrialing, body.Status)
	require.NotNil(t, body.Plan)
	assert.Equal(t, "pro-monthly", body.Plan.ID)
}

func TestSubscriptionHandler_CreateRequiresPlan(t *testing.T) {
	fake := &fakeSubscriptions{}
	e := newSubscriptionEcho(fake)

	rec := serve(e, asUser(jsonRequest(http.MethodPost, "/api/subscriptions", `{}`), uuid.New()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fake.planID)
}

func TestSubscriptionHandler_CurrentNotFound(t *testing.T) {
	e := newSubscriptionEcho(&fakeSubscriptions{})

	rec := serve(e, asUser(jsonRequest(http.MethodGet, "/api/subscriptions/current", ""), uuid.New()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "You have no active subscription", decodeError(t, rec).Message)
}
