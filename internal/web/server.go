package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/field-scheduler/internal/auth"
	"github.com/example/field-scheduler/internal/booking"
	"github.com/example/field-scheduler/internal/db"
	"github.com/example/field-scheduler/internal/scheduling"
	"github.com/example/field-scheduler/internal/territory"
)

// TerritoryAdmin is the write side of the catalog, used by the admin
// endpoints only.
type TerritoryAdmin interface {
	CreateTerritory(ctx context.Context, name string) (int64, error)
	AddTechnician(ctx context.Context, territoryName, email, displayName, timezone string) (int64, error)
	AddRule(ctx context.Context, territoryName, email string, rule territory.OpenHoursRule) error
}

type Server struct {
	Auth     *auth.Store
	Catalog  scheduling.Catalog
	Admin    TerritoryAdmin
	Sessions *scheduling.Store
	Orch     *scheduling.Orchestrator
	Cookies  *SessionCookie

	Buffer time.Duration
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/api/availability", s.handleAvailability)
	mux.HandleFunc("/api/selection", s.handleSelection)
	mux.HandleFunc("/api/submit", s.handleSubmit)

	mux.HandleFunc("/api/admin/login", s.handleLogin)
	mux.HandleFunc("/api/admin/logout", s.handleLogout)
	mux.Handle("/api/admin/territories", s.Auth.RequireAuth(http.HandlerFunc(s.handleTerritoryCreate)))
	mux.Handle("/api/admin/technicians", s.Auth.RequireAuth(http.HandlerFunc(s.handleTechnicianCreate)))
	mux.Handle("/api/admin/rules", s.Auth.RequireAuth(http.HandlerFunc(s.handleRuleCreate)))

	return mux
}

type slotDTO struct {
	Kind        string   `json:"kind"`
	Start       string   `json:"start"`
	End         string   `json:"end,omitempty"`
	Period      string   `json:"period"`
	Technicians []string `json:"technicians"`
}

type periodGroupDTO struct {
	Period string    `json:"period"`
	Slots  []slotDTO `json:"slots"`
}

type availabilityResponse struct {
	Territory string           `json:"territory"`
	Date      string           `json:"date"`
	Periods   []periodGroupDTO `json:"periods"`
}

// handleAvailability computes the bookable slots for a territory, date and
// duration. An unknown territory or empty roster is a normal empty answer,
// never an error: "no slots available" is an expected outcome.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	territoryName := strings.TrimSpace(r.URL.Query().Get("territory"))
	if territoryName == "" {
		badRequest(w, "territory is required")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		badRequest(w, "invalid date (want YYYY-MM-DD)")
		return
	}
	durMin := 60
	if v := r.URL.Query().Get("duration"); v != "" {
		if durMin, err = strconv.Atoi(v); err != nil || durMin <= 0 {
			badRequest(w, "invalid duration (want positive minutes)")
			return
		}
	}
	duration := time.Duration(durMin) * time.Minute

	sess := s.session(w, r)

	fetchCtx, gen := sess.StartAvailability(r.Context(), territoryName, date, duration)

	terr, err := s.Catalog.TerritoryByName(fetchCtx, territoryName)
	if err != nil && !db.IsNotFound(err) {
		// recovered locally: no roster means no slots
		log.Printf("web: territory fetch %q: %v", territoryName, err)
	}

	groups, err := booking.Compute(date, terr, duration, s.Buffer)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	sess.ApplyAvailability(gen, groups)

	resp := availabilityResponse{
		Territory: territoryName,
		Date:      date.Format("2006-01-02"),
		Periods:   []periodGroupDTO{},
	}
	for _, g := range groups {
		dto := periodGroupDTO{Period: string(g.Period)}
		for _, slot := range g.Slots {
			d := slotDTO{
				Kind:        string(slot.Kind),
				Start:       slot.Start.String(),
				Period:      string(slot.Period),
				Technicians: slot.Technicians,
			}
			if slot.Kind == booking.KindFlex {
				d.End = slot.End.String()
			}
			dto.Slots = append(dto.Slots, d)
		}
		resp.Periods = append(resp.Periods, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

type selectionRequest struct {
	Kind       string `json:"kind"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Period     string `json:"period"`
	Technician string `json:"technician"`
}

type selectionResponse struct {
	Start      int64  `json:"startTime"`
	End        int64  `json:"endTime"`
	Period     string `json:"period"`
	Kind       string `json:"kind"`
	Technician string `json:"technicianEmail"`
}

// handleSelection resolves a picked slot into a concrete booking on the
// session. Only slots the session was actually offered can be selected.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := s.existingSession(r)
	if !ok {
		badRequest(w, "no scheduling session; request availability first")
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	start, err := territory.ParseClock(req.Start)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var end territory.ClockTime
	if req.End != "" {
		if end, err = territory.ParseClock(req.End); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	slot, ok := sess.FindSlot(booking.Kind(req.Kind), start, end, booking.Period(req.Period))
	if !ok {
		badRequest(w, "slot not offered for the current date")
		return
	}

	terr, err := s.Catalog.TerritoryByName(r.Context(), sess.TerritoryName())
	if err != nil {
		log.Printf("web: territory fetch %q: %v", sess.TerritoryName(), err)
		serviceUnavailable(w)
		return
	}

	sel, err := booking.Resolve(sess.Date(), terr, sess.Duration(), slot, req.Technician)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	sess.Select(sel)

	writeJSON(w, http.StatusOK, selectionResponse{
		Start:      sel.Start,
		End:        sel.End,
		Period:     string(sel.Period),
		Kind:       string(sel.Kind),
		Technician: sel.Technician,
	})
}

type submitRequest struct {
	OrderID string `json:"order_id"`
}

// handleSubmit runs the full validation pipeline and maps the outcome:
// committed, rejected (pick another slot) or failed (try again).
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := s.existingSession(r)
	if !ok {
		badRequest(w, "no scheduling session; request availability first")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.OrderID) == "" {
		badRequest(w, "order_id is required")
		return
	}

	result, err := s.Orch.Submit(r.Context(), sess, req.OrderID)
	if err != nil {
		if errors.Is(err, scheduling.ErrNoSelection) {
			badRequest(w, "select a date and time first")
			return
		}
		badRequest(w, err.Error())
		return
	}

	switch result.Status {
	case scheduling.StateCommitted:
		writeJSON(w, http.StatusOK, map[string]any{"status": "committed"})
	case scheduling.StateRejected:
		writeJSON(w, http.StatusConflict, map[string]any{
			"status":   "rejected",
			"message":  "The selected time cannot be scheduled. Please choose another slot.",
			"unserved": result.Unserved,
		})
	default:
		log.Printf("web: submit order %s failed: %v", req.OrderID, result.Err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status":  "failed",
			"message": "Scheduling is temporarily unavailable. Please try again.",
		})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	id, err := s.Auth.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		http.Error(w, "invalid username/password", http.StatusUnauthorized)
		return
	}
	if err := s.Auth.SetSession(w, r, id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTerritoryCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		badRequest(w, "name is required")
		return
	}
	id, err := s.Admin.CreateTerritory(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "name": req.Name})
}

func (s *Server) handleTechnicianCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Territory   string `json:"territory"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Timezone    string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Territory == "" || req.Email == "" {
		badRequest(w, "territory and email are required")
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	id, err := s.Admin.AddTechnician(r.Context(), req.Territory, req.Email, req.DisplayName, req.Timezone)
	if err != nil {
		if db.IsNotFound(err) {
			badRequest(w, "unknown territory")
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleRuleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Territory string   `json:"territory"`
		Email     string   `json:"email"`
		Start     string   `json:"start"`
		End       string   `json:"end"`
		Weekdays  []int    `json:"weekdays"`
		Excluded  []string `json:"excluded"`
		Timezone  string   `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Territory == "" || req.Email == "" {
		badRequest(w, "territory and email are required")
		return
	}
	start, err := territory.ParseClock(req.Start)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	end, err := territory.ParseClock(req.End)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if end <= start {
		badRequest(w, "end must be after start")
		return
	}
	rule := territory.OpenHoursRule{Start: start, End: end, Excluded: req.Excluded, Timezone: req.Timezone}
	if rule.Timezone == "" {
		rule.Timezone = "UTC"
	}
	for _, wd := range req.Weekdays {
		if wd < 0 || wd > 6 {
			badRequest(w, fmt.Sprintf("invalid weekday %d", wd))
			return
		}
		rule.Weekdays = append(rule.Weekdays, time.Weekday(wd))
	}
	if err := s.Admin.AddRule(r.Context(), req.Territory, req.Email, rule); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// session returns the request's scheduling session, creating one (and
// setting the cookie) when absent or expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *scheduling.Session {
	if sid, ok := s.Cookies.Get(r); ok {
		if sess, ok := s.Sessions.Get(sid); ok {
			return sess
		}
	}
	sess := s.Sessions.Create()
	if err := s.Cookies.Set(w, sess.ID); err != nil {
		log.Printf("web: set session cookie: %v", err)
	}
	return sess
}

func (s *Server) existingSession(r *http.Request) (*scheduling.Session, bool) {
	sid, ok := s.Cookies.Get(r)
	if !ok {
		return nil, false
	}
	return s.Sessions.Get(sid)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func serviceUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable, please try again"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves h on addr until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("web: listening on %s", addr)
	return srv.ListenAndServe()
}
