package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

func TestCatalogService_ListOffers(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now()

	t.Run("groups offers by kind and filters inactive specials", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewCatalogService(db, redisClient, audit.NewLogger())

		redisMock.ExpectGet(offersCacheKey).RedisNil()

		mock.ExpectQuery("SELECT id, kind, name, price, quantity, active, position, created_at, updated_at").
			WithArgs(models.OfferKindSpecial).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "kind", "name", "price", "quantity", "active", "position", "created_at", "updated_at",
			}).
				AddRow(1, models.OfferKindDiamondPack, "60 Diamonds", 50, 60, true, 1, now, now).
				AddRow(2, models.OfferKindDiamondPack, "325 Diamonds", 250, 325, true, 2, now, now).
				AddRow(3, models.OfferKindMembership, "Weekly Membership", 150, 1, true, 1, now, now))

		redisMock.Regexp().ExpectSet(offersCacheKey, `.*`, offersCacheTTL).SetVal("OK")

		w := httptest.NewRecorder()
		service.ListOffers(w, httptest.NewRequest("GET", "/offers", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var grouped map[string][]models.Offer
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &grouped))
		assert.Len(t, grouped[models.OfferKindDiamondPack], 2)
		assert.Len(t, grouped[models.OfferKindMembership], 1)
		assert.Equal(t, "60 Diamonds", grouped[models.OfferKindDiamondPack][0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("serves the cached catalog without touching the database", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewCatalogService(db, redisClient, audit.NewLogger())

		cached := `{"diamond_pack":[]}`
		redisMock.ExpectGet(offersCacheKey).SetVal(cached)

		w := httptest.NewRecorder()
		service.ListOffers(w, httptest.NewRequest("GET", "/offers", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, cached, w.Body.String())
	})
}

func TestCatalogService_CreateOffer(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewCatalogService(db, redisClient, audit.NewLogger())

	t.Run("appends to the end of its kind and invalidates the cache", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("INSERT INTO offers").
			WithArgs(models.OfferKindDiamondPack, "520 Diamonds", int64(400), 520, true).
			WillReturnRows(sqlmock.NewRows([]string{"id", "position", "created_at", "updated_at"}).
				AddRow(9, 4, now, now))
		redisMock.ExpectDel(offersCacheKey).SetVal(1)

		body, _ := json.Marshal(OfferRequest{
			Kind: models.OfferKindDiamondPack, Name: "520 Diamonds", Price: 400, Quantity: 520, Active: true,
		})
		w := httptest.NewRecorder()
		service.CreateOffer(w, authedRequest("POST", "/admin/offers", body))

		assert.Equal(t, http.StatusCreated, w.Code)

		var offer models.Offer
		json.Unmarshal(w.Body.Bytes(), &offer)
		assert.Equal(t, 9, offer.ID)
		assert.Equal(t, 4, offer.Position)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown offer kind", func(t *testing.T) {
		body, _ := json.Marshal(OfferRequest{
			Kind: "loot_box", Name: "Mystery", Price: 100, Quantity: 1, Active: true,
		})
		w := httptest.NewRecorder()
		service.CreateOffer(w, authedRequest("POST", "/admin/offers", body))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCatalogService_ReorderOffers(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewCatalogService(db, redisClient, audit.NewLogger())

	t.Run("rewrites positions in the submitted order", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE offers SET position").
			WithArgs(1, 3, models.OfferKindDiamondPack).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE offers SET position").
			WithArgs(2, 1, models.OfferKindDiamondPack).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE offers SET position").
			WithArgs(3, 2, models.OfferKindDiamondPack).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		redisMock.ExpectDel(offersCacheKey).SetVal(1)

		body, _ := json.Marshal(ReorderRequest{Kind: models.OfferKindDiamondPack, IDs: []int{3, 1, 2}})
		w := httptest.NewRecorder()
		service.ReorderOffers(w, authedRequest("POST", "/admin/offers/reorder", body))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects an ID from another kind", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE offers SET position").
			WithArgs(1, 42, models.OfferKindDiamondPack).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		body, _ := json.Marshal(ReorderRequest{Kind: models.OfferKindDiamondPack, IDs: []int{42}})
		w := httptest.NewRecorder()
		service.ReorderOffers(w, authedRequest("POST", "/admin/offers/reorder", body))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
