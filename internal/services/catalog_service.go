package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

const offersCacheKey = "catalog:offers"
const offersCacheTTL = 60 * time.Second

type CatalogService struct {
	db     *sql.DB
	redis  *redis.Client
	audit  *audit.Logger
	helper *ValidationHelper
}

// OfferRequest represents an offer create/update payload
// @Description Offer request structure
type OfferRequest struct {
	Kind     string `json:"kind" validate:"required,offerkind" example:"diamond_pack"`
	Name     string `json:"name" validate:"required,min=2,max=128" example:"520 Diamonds"`
	Price    int64  `json:"price" validate:"required,gt=0" example:"400"`
	Quantity int    `json:"quantity" validate:"required,gt=0" example:"520"`
	Active   bool   `json:"active" example:"true"`
}

// ReorderRequest carries the full ordering of IDs for one offer kind
// @Description Reorder request structure
type ReorderRequest struct {
	Kind string `json:"kind" validate:"required,offerkind"`
	IDs  []int  `json:"ids" validate:"required,min=1"`
}

func NewCatalogService(db *sql.DB, redisClient *redis.Client, auditLogger *audit.Logger) *CatalogService {
	return &CatalogService{
		db:     db,
		redis:  redisClient,
		audit:  auditLogger,
		helper: NewValidationHelper(),
	}
}

// ListOffers serves the storefront catalog grouped by offer kind
// @Summary List offers
// @Description List active catalog offers grouped by kind. Specials are filtered to active ones.
// @Tags catalog
// @Produce json
// @Success 200 {object} map[string][]models.Offer "Offers by kind"
// @Router /offers [get]
func (s *CatalogService) ListOffers(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		if cached, err := s.redis.Get(r.Context(), offersCacheKey).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		}
	}

	rows, err := s.db.Query(`
		SELECT id, kind, name, price, quantity, active, position, created_at, updated_at
		FROM offers WHERE active = true OR kind != $1
		ORDER BY kind, position ASC`, models.OfferKindSpecial)
	if err != nil {
		log.Printf("[CATALOG] Offer listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch offers", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	grouped := map[string][]models.Offer{}
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.Kind, &o.Name, &o.Price, &o.Quantity,
			&o.Active, &o.Position, &o.CreatedAt, &o.UpdatedAt); err != nil {
			continue
		}
		grouped[o.Kind] = append(grouped[o.Kind], o)
	}

	blob, err := json.Marshal(grouped)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch offers", http.StatusInternalServerError, nil)
		return
	}

	if s.redis != nil {
		s.redis.Set(r.Context(), offersCacheKey, blob, offersCacheTTL)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(blob)
}

// CreateOffer adds a catalog offer
// @Summary Create offer
// @Description Create a catalog offer (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Param request body OfferRequest true "Offer"
// @Success 201 {object} models.Offer "Offer created"
// @Failure 400 {string} string "Invalid request"
// @Router /admin/offers [post]
func (s *CatalogService) CreateOffer(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	req, ok := s.decodeOffer(w, r)
	if !ok {
		return
	}

	var offer models.Offer
	// New offers go to the end of their kind's listing
	err := s.db.QueryRow(`
		INSERT INTO offers (kind, name, price, quantity, active, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM offers WHERE kind = $1),
			NOW(), NOW())
		RETURNING id, position, created_at, updated_at`,
		req.Kind, req.Name, req.Price, req.Quantity, req.Active).
		Scan(&offer.ID, &offer.Position, &offer.CreatedAt, &offer.UpdatedAt)
	if err != nil {
		log.Printf("[CATALOG] Offer creation failed: %v", err)
		SendErrorResponse(w, "Failed to create offer", http.StatusInternalServerError, nil)
		return
	}

	offer.Kind = req.Kind
	offer.Name = req.Name
	offer.Price = req.Price
	offer.Quantity = int64(req.Quantity)
	offer.Active = req.Active

	s.invalidateCache(r)
	s.audit.LogAdminAction(adminID, "OFFER_CREATE", offer.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(offer)
}

// UpdateOffer replaces an offer's fields
// @Summary Update offer
// @Description Update a catalog offer (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Offer ID"
// @Param request body OfferRequest true "Offer"
// @Success 200 {object} map[string]string "Offer updated"
// @Failure 404 {string} string "Offer not found"
// @Router /admin/offers/{id} [put]
func (s *CatalogService) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	offerID := chi.URLParam(r, "id")

	req, ok := s.decodeOffer(w, r)
	if !ok {
		return
	}

	res, err := s.db.Exec(`
		UPDATE offers SET kind = $1, name = $2, price = $3, quantity = $4, active = $5, updated_at = NOW()
		WHERE id = $6`,
		req.Kind, req.Name, req.Price, req.Quantity, req.Active, offerID)
	if err != nil {
		log.Printf("[CATALOG] Offer update failed for %s: %v", offerID, err)
		SendErrorResponse(w, "Failed to update offer", http.StatusInternalServerError, nil)
		return
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		SendErrorResponse(w, "Offer not found", http.StatusNotFound, nil)
		return
	}

	s.invalidateCache(r)
	s.audit.LogAdminAction(adminID, "OFFER_UPDATE", offerID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Offer updated"})
}

// DeleteOffer removes an offer from the catalog
// @Summary Delete offer
// @Description Delete a catalog offer (admin only). Existing orders keep their snapshot.
// @Tags admin
// @Produce json
// @Param id path int true "Offer ID"
// @Success 200 {object} map[string]string "Offer deleted"
// @Failure 404 {string} string "Offer not found"
// @Router /admin/offers/{id} [delete]
func (s *CatalogService) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	offerID := chi.URLParam(r, "id")

	res, err := s.db.Exec("DELETE FROM offers WHERE id = $1", offerID)
	if err != nil {
		log.Printf("[CATALOG] Offer deletion failed for %s: %v", offerID, err)
		SendErrorResponse(w, "Failed to delete offer", http.StatusInternalServerError, nil)
		return
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		SendErrorResponse(w, "Offer not found", http.StatusNotFound, nil)
		return
	}

	s.invalidateCache(r)
	s.audit.LogAdminAction(adminID, "OFFER_DELETE", offerID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Offer deleted"})
}

// ReorderOffers rewrites the display positions of one offer kind
// @Summary Reorder offers
// @Description Rewrite the positions of all offers in a kind (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Param request body ReorderRequest true "New ordering"
// @Success 200 {object} map[string]string "Offers reordered"
// @Failure 400 {string} string "Invalid request"
// @Router /admin/offers/reorder [post]
func (s *CatalogService) ReorderOffers(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ReorderRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.helper.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to reorder offers", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	for pos, id := range req.IDs {
		res, err := tx.Exec("UPDATE offers SET position = $1, updated_at = NOW() WHERE id = $2 AND kind = $3",
			pos+1, id, req.Kind)
		if err != nil {
			SendErrorResponse(w, "Failed to reorder offers", http.StatusInternalServerError, nil)
			return
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			SendErrorResponse(w, "Unknown offer ID in ordering", http.StatusBadRequest, nil)
			return
		}
	}

	if err = tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to reorder offers", http.StatusInternalServerError, nil)
		return
	}

	s.invalidateCache(r)
	s.audit.LogAdminAction(adminID, "OFFER_REORDER", req.Kind)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Offers reordered"})
}

func (s *CatalogService) decodeOffer(w http.ResponseWriter, r *http.Request) (OfferRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req OfferRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return req, false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return req, false
	}

	if err := s.helper.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return req, false
	}

	return req, true
}

func (s *CatalogService) invalidateCache(r *http.Request) {
	if s.redis != nil {
		s.redis.Del(r.Context(), offersCacheKey)
	}
}
