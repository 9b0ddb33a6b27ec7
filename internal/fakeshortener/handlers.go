package fakeshortener

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/linkboard/linkboard/internal/models"
)

func contextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

type authRequestBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeBody(request *http.Request, target interface{}) error {
	return json.NewDecoder(request.Body).Decode(target)
}

func (s *Server) postRegister(response http.ResponseWriter, request *http.Request) {
	var body authRequestBody
	if err := decodeBody(request, &body); err != nil || body.Email == "" || body.Password == "" {
		respondMessage(response, http.StatusBadRequest, "Email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[body.Email]; exists {
		respondMessage(response, http.StatusBadRequest, "Email already in use")
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	if err != nil {
		respondMessage(response, http.StatusInternalServerError, "Failed to create user")
		return
	}

	theAccount := &account{
		id:           uuid.NewString(),
		email:        body.Email,
		passwordHash: passwordHash,
		plan:         "FREE",
	}
	s.users[body.Email] = theAccount

	token, err := s.issueToken(theAccount.id)
	if err != nil {
		respondMessage(response, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondJSON(response, http.StatusOK, models.AuthResponse{
		Token: token,
		Email: theAccount.email,
		Plan:  theAccount.plan,
	})
}

func (s *Server) postLogin(response http.ResponseWriter, request *http.Request) {
	var body authRequestBody
	if err := decodeBody(request, &body); err != nil {
		respondMessage(response, http.StatusBadRequest, "Email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	theAccount, exists := s.users[body.Email]
	if !exists || bcrypt.CompareHashAndPassword(theAccount.passwordHash, []byte(body.Password)) != nil {
		respondMessage(response, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.issueToken(theAccount.id)
	if err != nil {
		respondMessage(response, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondJSON(response, http.StatusOK, models.AuthResponse{
		Token: token,
		Email: theAccount.email,
		Plan:  theAccount.plan,
	})
}

func shortURLFor(request *http.Request, shortCode string) string {
	scheme := "http"
	if request.TLS != nil {
		scheme = "https"
	}

	return scheme + "://" + request.Host + "/" + shortCode
}

func (s *Server) getLinks(response http.ResponseWriter, request *http.Request) {
	userID := userIDFromContext(request.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	result := []models.Link{}
	for _, record := range s.links {
		if record.ownerID != userID {
			continue
		}
		link := record.Link
		link.ShortURL = shortURLFor(request, record.ShortCode)
		link.ClickCount = int64(len(record.clicks))
		result = append(result, link)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	respondJSON(response, http.StatusOK, result)
}

func (s *Server) postLink(response http.ResponseWriter, request *http.Request) {
	userID := userIDFromContext(request.Context())

	var body models.CreateLinkRequest
	if err := decodeBody(request, &body); err != nil || body.OriginalURL == "" {
		respondMessage(response, http.StatusBadRequest, "An original URL is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	shortCode := body.CustomAlias
	if shortCode == "" {
		shortCode = strings.Split(uuid.NewString(), "-")[0]
	}
	if _, taken := s.byCode[shortCode]; taken {
		respondMessage(response, http.StatusBadRequest, "Alias already in use")
		return
	}

	record := &linkRecord{
		Link: models.Link{
			ID:          uuid.NewString(),
			OriginalURL: body.OriginalURL,
			ShortCode:   shortCode,
			IsActive:    body.IsActive,
			CreatedAt:   s.now(),
			ExpiresAt:   body.ExpiresAt,
		},
		ownerID:  userID,
		password: body.Password,
	}
	s.links[record.ID] = record
	s.byCode[shortCode] = record.ID

	link := record.Link
	link.ShortURL = shortURLFor(request, shortCode)
	respondJSON(response, http.StatusOK, link)
}

// lockedOwnedLink resolves a link ID to a record owned by userID. The
// caller must hold s.mu.
func (s *Server) lockedOwnedLink(linkID, userID string) *linkRecord {
	record, exists := s.links[linkID]
	if !exists || record.ownerID != userID {
		return nil
	}

	return record
}

func (s *Server) putLink(response http.ResponseWriter, request *http.Request) {
	userID := userIDFromContext(request.Context())
	linkID := chi.URLParam(request, "linkID")

	var body models.UpdateLinkRequest
	if err := decodeBody(request, &body); err != nil {
		respondMessage(response, http.StatusBadRequest, "Malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.lockedOwnedLink(linkID, userID)
	if record == nil {
		respondMessage(response, http.StatusNotFound, "Link not found")
		return
	}

	if body.OriginalURL != nil {
		record.OriginalURL = *body.OriginalURL
	}
	if body.CustomAlias != nil && *body.CustomAlias != record.ShortCode {
		if _, taken := s.byCode[*body.CustomAlias]; taken {
			respondMessage(response, http.StatusBadRequest, "Alias already in use")
			return
		}
		delete(s.byCode, record.ShortCode)
		record.ShortCode = *body.CustomAlias
		s.byCode[record.ShortCode] = record.ID
	}
	if body.Password != nil {
		record.password = *body.Password
	}
	if body.ExpiresAt != nil {
		record.ExpiresAt = body.ExpiresAt
	}
	if body.IsActive != nil {
		record.IsActive = *body.IsActive
	}

	link := record.Link
	link.ShortURL = shortURLFor(request, record.ShortCode)
	link.ClickCount = int64(len(record.clicks))
	respondJSON(response, http.StatusOK, link)
}

func (s *Server) deleteLink(response http.ResponseWriter, request *http.Request) {
	userID := userIDFromContext(request.Context())
	linkID := chi.URLParam(request, "linkID")

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.lockedOwnedLink(linkID, userID)
	if record == nil {
		respondMessage(response, http.StatusNotFound, "Link not found")
		return
	}

	delete(s.byCode, record.ShortCode)
	delete(s.links, linkID)

	respondJSON(response, http.StatusNoContent, nil)
}

func classifyDevice(userAgent string) string {
	lowered := strings.ToLower(userAgent)
	switch {
	case strings.Contains(lowered, "mobile") || strings.Contains(lowered, "android") || strings.Contains(lowered, "iphone"):
		return "Mobile"
	case strings.Contains(lowered, "tablet") || strings.Contains(lowered, "ipad"):
		return "Tablet"
	default:
		return "Desktop"
	}
}

func (s *Server) getRedirect(response http.ResponseWriter, request *http.Request) {
	shortCode := chi.URLParam(request, "shortCode")

	s.mu.Lock()
	defer s.mu.Unlock()

	linkID, exists := s.byCode[shortCode]
	if !exists {
		respondMessage(response, http.StatusNotFound, "Unknown short code")
		return
	}
	record := s.links[linkID]

	now := s.now()
	if !record.IsActive || (record.ExpiresAt != nil && record.ExpiresAt.Before(now)) {
		respondMessage(response, http.StatusGone, "Link is inactive or expired")
		return
	}

	record.clicks = append(record.clicks, click{
		at:         now,
		ipAddress:  request.RemoteAddr,
		deviceType: classifyDevice(request.Header.Get("User-Agent")),
	})

	http.Redirect(response, request, record.OriginalURL, http.StatusFound)
}

const recentClicksLimit = 10

func (s *Server) getAnalytics(response http.ResponseWriter, request *http.Request) {
	userID := userIDFromContext(request.Context())
	linkID := chi.URLParam(request, "linkID")

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.lockedOwnedLink(linkID, userID)
	if record == nil {
		respondMessage(response, http.StatusNotFound, "Link not found")
		return
	}

	byDate := map[string]int64{}
	byDevice := map[string]int64{}
	for _, theClick := range record.clicks {
		byDate[theClick.at.Format(time.DateOnly)]++
		byDevice[theClick.deviceType]++
	}

	analytics := models.AnalyticsResponse{
		OriginalURL:        record.OriginalURL,
		ShortURL:           shortURLFor(request, record.ShortCode),
		CreatedAt:          record.CreatedAt,
		IsActive:           record.IsActive,
		TotalClicks:        int64(len(record.clicks)),
		ClicksByDate:       []models.DateClicks{},
		DeviceDistribution: []models.DeviceShare{},
		RecentClicks:       []models.ClickDetail{},
	}

	for date, clicks := range byDate {
		analytics.ClicksByDate = append(analytics.ClicksByDate, models.DateClicks{Date: date, Clicks: clicks})
	}
	sort.Slice(analytics.ClicksByDate, func(i, j int) bool {
		return analytics.ClicksByDate[i].Date < analytics.ClicksByDate[j].Date
	})

	for device, clicks := range byDevice {
		analytics.DeviceDistribution = append(analytics.DeviceDistribution, models.DeviceShare{Device: device, Clicks: clicks})
	}
	sort.Slice(analytics.DeviceDistribution, func(i, j int) bool {
		return analytics.DeviceDistribution[i].Clicks > analytics.DeviceDistribution[j].Clicks
	})

	start := len(record.clicks) - recentClicksLimit
	if start < 0 {
		start = 0
	}
	for _, theClick := range record.clicks[start:] {
		analytics.RecentClicks = append(analytics.RecentClicks, models.ClickDetail{
			ClickedAt:  theClick.at,
			IPAddress:  theClick.ipAddress,
			DeviceType: theClick.deviceType,
		})
	}

	respondJSON(response, http.StatusOK, analytics)
}
