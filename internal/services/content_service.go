package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

// ContentService manages the storefront's editorial surface: banners,
// notices and the payment channel directory.
type ContentService struct {
	db     *sql.DB
	audit  *audit.Logger
	helper *ValidationHelper
}

// BannerRequest represents a banner create/update payload
type BannerRequest struct {
	ImageURL string `json:"imageUrl" validate:"required,url"`
	LinkURL  string `json:"linkUrl" validate:"omitempty,url"`
	Active   bool   `json:"active"`
}

// NoticeRequest represents a notice create payload
type NoticeRequest struct {
	Title string `json:"title" validate:"required,min=2,max=128"`
	Body  string `json:"body" validate:"required,min=2,max=4096"`
}

// ChannelRequest represents a payment channel create/update payload
type ChannelRequest struct {
	Name         string `json:"name" validate:"required,min=2,max=64" example:"KPay"`
	Kind         string `json:"kind" validate:"required,oneof=wallet bank" example:"wallet"`
	Address      string `json:"address" validate:"required,min=2,max=128"` // wallet number or bank account
	Instructions string `json:"instructions" validate:"omitempty,max=1024"`
	LogoURL      string `json:"logoUrl" validate:"omitempty,url"`
	Active       bool   `json:"active"`
}

func NewContentService(db *sql.DB, auditLogger *audit.Logger) *ContentService {
	return &ContentService{
		db:     db,
		audit:  auditLogger,
		helper: NewValidationHelper(),
	}
}

// ListBanners serves the active storefront banners
// @Summary List banners
// @Tags content
// @Produce json
// @Success 200 {array} models.Banner "Banners"
// @Router /banners [get]
func (s *ContentService) ListBanners(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT id, image_url, link_url, active, position, created_at
		FROM banners WHERE active = true ORDER BY position ASC`)
	if err != nil {
		log.Printf("[CONTENT] Banner listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch banners", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	banners := make([]models.Banner, 0)
	for rows.Next() {
		var b models.Banner
		if err := rows.Scan(&b.ID, &b.ImageURL, &b.LinkURL, &b.Active, &b.Position, &b.CreatedAt); err != nil {
			continue
		}
		banners = append(banners, b)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(banners)
}

// ListNotices serves the notice feed, newest first
// @Summary List notices
// @Tags content
// @Produce json
// @Success 200 {array} models.Notice "Notices"
// @Router /notices [get]
func (s *ContentService) ListNotices(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query("SELECT id, title, body, created_at FROM notices ORDER BY created_at DESC LIMIT 50")
	if err != nil {
		log.Printf("[CONTENT] Notice listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch notices", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	notices := make([]models.Notice, 0)
	for rows.Next() {
		var n models.Notice
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			continue
		}
		notices = append(notices, n)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notices)
}

// CreateBanner adds a storefront banner
// @Summary Create banner
// @Tags admin
// @Accept json
// @Produce json
// @Param request body BannerRequest true "Banner"
// @Success 201 {object} models.Banner "Banner created"
// @Router /admin/banners [post]
func (s *ContentService) CreateBanner(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	var req BannerRequest
	if !s.decode(w, r, &req) {
		return
	}

	var banner models.Banner
	err := s.db.QueryRow(`
		INSERT INTO banners (image_url, link_url, active, position, created_at)
		VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position), 0) + 1 FROM banners), NOW())
		RETURNING id, position, created_at`,
		req.ImageURL, req.LinkURL, req.Active).
		Scan(&banner.ID, &banner.Position, &banner.CreatedAt)
	if err != nil {
		log.Printf("[CONTENT] Banner creation failed: %v", err)
		SendErrorResponse(w, "Failed to create banner", http.StatusInternalServerError, nil)
		return
	}

	banner.ImageURL = req.ImageURL
	banner.LinkURL = req.LinkURL
	banner.Active = req.Active

	s.audit.LogAdminAction(adminID, "BANNER_CREATE", req.ImageURL)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(banner)
}

// UpdateBanner replaces a banner's fields
// @Summary Update banner
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Banner ID"
// @Param request body BannerRequest true "Banner"
// @Success 200 {object} map[string]string "Banner updated"
// @Router /admin/banners/{id} [put]
func (s *ContentService) UpdateBanner(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	bannerID := chi.URLParam(r, "id")

	var req BannerRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.db.Exec("UPDATE banners SET image_url = $1, link_url = $2, active = $3 WHERE id = $4",
		req.ImageURL, req.LinkURL, req.Active, bannerID)
	if err != nil {
		SendErrorResponse(w, "Failed to update banner", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Banner not found", http.StatusNotFound, nil)
		return
	}

	s.audit.LogAdminAction(adminID, "BANNER_UPDATE", bannerID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Banner updated"})
}

// DeleteBanner removes a banner
// @Summary Delete banner
// @Tags admin
// @Produce json
// @Param id path int true "Banner ID"
// @Success 200 {object} map[string]string "Banner deleted"
// @Router /admin/banners/{id} [delete]
func (s *ContentService) DeleteBanner(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	bannerID := chi.URLParam(r, "id")

	res, err := s.db.Exec("DELETE FROM banners WHERE id = $1", bannerID)
	if err != nil {
		SendErrorResponse(w, "Failed to delete banner", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Banner not found", http.StatusNotFound, nil)
		return
	}

	s.audit.LogAdminAction(adminID, "BANNER_DELETE", bannerID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Banner deleted"})
}

// BannerOrderRequest carries the full display ordering of the banners
type BannerOrderRequest struct {
	IDs []int `json:"ids" validate:"required,min=1"`
}

// ReorderBanners rewrites the display positions of the banner strip
// @Summary Reorder banners
// @Tags admin
// @Accept json
// @Produce json
// @Param request body BannerOrderRequest true "New ordering"
// @Success 200 {object} map[string]string "Banners reordered"
// @Failure 400 {string} string "Invalid request"
// @Router /admin/banners/reorder [post]
func (s *ContentService) ReorderBanners(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	var req BannerOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to reorder banners", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	for pos, id := range req.IDs {
		res, err := tx.Exec("UPDATE banners SET position = $1 WHERE id = $2", pos+1, id)
		if err != nil {
			SendErrorResponse(w, "Failed to reorder banners", http.StatusInternalServerError, nil)
			return
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			SendErrorResponse(w, "Unknown banner ID in ordering", http.StatusBadRequest, nil)
			return
		}
	}

	if err = tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to reorder banners", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogAdminAction(adminID, "BANNER_REORDER", "")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Banners reordered"})
}

// CreateNotice publishes a notice
// @Summary Create notice
// @Tags admin
// @Accept json
// @Produce json
// @Param request body NoticeRequest true "Notice"
// @Success 201 {object} models.Notice "Notice created"
// @Router /admin/notices [post]
func (s *ContentService) CreateNotice(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	var req NoticeRequest
	if !s.decode(w, r, &req) {
		return
	}

	var notice models.Notice
	err := s.db.QueryRow("INSERT INTO notices (title, body, created_at) VALUES ($1, $2, NOW()) RETURNING id, created_at",
		req.Title, req.Body).Scan(&notice.ID, &notice.CreatedAt)
	if err != nil {
		log.Printf("[CONTENT] Notice creation failed: %v", err)
		SendErrorResponse(w, "Failed to create notice", http.StatusInternalServerError, nil)
		return
	}

	notice.Title = req.Title
	notice.Body = req.Body

	s.audit.LogAdminAction(adminID, "NOTICE_CREATE", req.Title)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(notice)
}

// DeleteNotice removes a notice
// @Summary Delete notice
// @Tags admin
// @Produce json
// @Param id path int true "Notice ID"
// @Success 200 {object} map[string]string "Notice deleted"
// @Router /admin/notices/{id} [delete]
func (s *ContentService) DeleteNotice(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	noticeID := chi.URLParam(r, "id")

	res, err := s.db.Exec("DELETE FROM notices WHERE id = $1", noticeID)
	if err != nil {
		SendErrorResponse(w, "Failed to delete notice", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Notice not found", http.StatusNotFound, nil)
		return
	}

	s.audit.LogAdminAction(adminID, "NOTICE_DELETE", noticeID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Notice deleted"})
}

// CreateChannel adds a payment channel
// @Summary Create payment channel
// @Tags admin
// @Accept json
// @Produce json
// @Param request body ChannelRequest true "Channel"
// @Success 201 {object} models.PaymentChannel "Channel created"
// @Router /admin/payment-channels [post]
func (s *ContentService) CreateChannel(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	var req ChannelRequest
	if !s.decode(w, r, &req) {
		return
	}

	var channel models.PaymentChannel
	err := s.db.QueryRow(`
		INSERT INTO payment_channels (name, kind, address, instructions, logo_url, active, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, (SELECT COALESCE(MAX(position), 0) + 1 FROM payment_channels), NOW())
		RETURNING id, position, created_at`,
		req.Name, req.Kind, req.Address, req.Instructions, req.LogoURL, req.Active).
		Scan(&channel.ID, &channel.Position, &channel.CreatedAt)
	if err != nil {
		log.Printf("[CONTENT] Channel creation failed: %v", err)
		SendErrorResponse(w, "Failed to create payment channel", http.StatusInternalServerError, nil)
		return
	}

	channel.Name = req.Name
	channel.Kind = req.Kind
	channel.Address = req.Address
	channel.Instructions = req.Instructions
	channel.LogoURL = req.LogoURL
	channel.Active = req.Active

	s.audit.LogAdminAction(adminID, "CHANNEL_CREATE", req.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(channel)
}

// UpdateChannel replaces a payment channel's fields
// @Summary Update payment channel
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Channel ID"
// @Param request body ChannelRequest true "Channel"
// @Success 200 {object} map[string]string "Channel updated"
// @Router /admin/payment-channels/{id} [put]
func (s *ContentService) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	channelID := chi.URLParam(r, "id")

	var req ChannelRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.db.Exec(`
		UPDATE payment_channels SET name = $1, kind = $2, address = $3, instructions = $4, logo_url = $5, active = $6
		WHERE id = $7`,
		req.Name, req.Kind, req.Address, req.Instructions, req.LogoURL, req.Active, channelID)
	if err != nil {
		SendErrorResponse(w, "Failed to update payment channel", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Payment channel not found", http.StatusNotFound, nil)
		return
	}

	s.audit.LogAdminAction(adminID, "CHANNEL_UPDATE", channelID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Payment channel updated"})
}

// DeleteChannel removes a payment channel
// @Summary Delete payment channel
// @Tags admin
// @Produce json
// @Param id path int true "Channel ID"
// @Success 200 {object} map[string]string "Channel deleted"
// @Router /admin/payment-channels/{id} [delete]
func (s *ContentService) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	channelID := chi.URLParam(r, "id")

	res, err := s.db.Exec("DELETE FROM payment_channels WHERE id = $1", channelID)
	if err != nil {
		SendErrorResponse(w, "Failed to delete payment channel", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Payment channel not found", http.StatusNotFound, nil)
		return
	}

	s.audit.LogAdminAction(adminID, "CHANNEL_DELETE", channelID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Payment channel deleted"})
}

func (s *ContentService) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := s.helper.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}

	return true
}
